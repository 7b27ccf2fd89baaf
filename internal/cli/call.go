package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(callCmd)
}

var callCmd = &cobra.Command{
	Use:   "call <operation> [key=value ...]",
	Short: "Run one filesystem operation locally",
	Long: "Runs a single operation through the same resolution, allow-list and error\n" +
		"handling as the MCP tools, and prints the JSON result.\n\n" +
		"Operations: list, read_file, write_file, delete, mkdir, move (fs_ prefix optional).\n" +
		"Example: fsgate call move src=~/notes/a.txt dst=~/notes/b.txt overwrite=true",
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

// parseCallArgs turns key=value pairs into an argument map.
func parseCallArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", pair)
		}
		if _, dup := args[key]; dup {
			return nil, fmt.Errorf("argument %q given more than once", key)
		}
		args[key] = value
	}
	return args, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	callArgs, err := parseCallArgs(args[1:])
	if err != nil {
		return err
	}

	result, err := newDispatcher().Call(cmd.Context(), args[0], callArgs)
	if err != nil {
		return fmt.Errorf("%s", errorLine(err))
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
