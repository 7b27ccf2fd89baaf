package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fsgate/internal/fsops"
)

var checkFormat string

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
}

var checkCmd = &cobra.Command{
	Use:   "check <path>...",
	Short: "Dry-run authorization for paths",
	Long: "Resolves each path and checks it against the current allow-list\n" +
		"without touching the filesystem.\n\n" +
		"Exit code 0 if every path is allowed, 1 otherwise.",
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

// CheckResult is the decision for one path.
type CheckResult struct {
	Path     string     `json:"path"`
	Resolved string     `json:"resolved,omitempty"`
	Allowed  bool       `json:"allowed"`
	Kind     fsops.Kind `json:"kind,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

func checkPaths(ctx context.Context, ops *fsops.Dispatcher, paths []string) []CheckResult {
	results := make([]CheckResult, 0, len(paths))
	for _, p := range paths {
		resolved, err := ops.Check(ctx, p)
		r := CheckResult{Path: p, Resolved: resolved, Allowed: err == nil}
		if err != nil {
			r.Kind = fsops.Classify(err)
			r.Reason = errorLine(err)
		}
		results = append(results, r)
	}
	return results
}

func runCheck(cmd *cobra.Command, args []string) error {
	results := checkPaths(cmd.Context(), newDispatcher(), args)

	out := cmd.OutOrStdout()
	switch checkFormat {
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	default:
		for _, r := range results {
			if r.Allowed {
				fmt.Fprintf(out, "ALLOW  %s -> %s\n", r.Path, r.Resolved)
			} else {
				fmt.Fprintf(out, "DENY   %s (%s)\n", r.Path, r.Reason)
			}
		}
	}

	denied := 0
	for _, r := range results {
		if !r.Allowed {
			denied++
		}
	}
	if denied > 0 {
		return fmt.Errorf("%d of %d path(s) not allowed", denied, len(results))
	}
	return nil
}
