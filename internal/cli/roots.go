package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rootsCmd)
}

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "Print the effective allow-list",
	Long: "Parses the allow-list variable exactly as a tool call would and prints\n" +
		"each resolved root. Entries that do not exist or are not directories are\n" +
		"dropped and therefore not shown.",
	Args: cobra.NoArgs,
	RunE: runRoots,
}

func runRoots(cmd *cobra.Command, args []string) error {
	roots := newDispatcher().Roots()
	if len(roots) == 0 {
		return fmt.Errorf("no allowed directories configured: set %s", settings.AllowedDirsEnv)
	}
	for _, r := range roots {
		fmt.Fprintln(cmd.OutOrStdout(), r)
	}
	return nil
}
