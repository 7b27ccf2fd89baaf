package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fsgate/internal/audit"
)

var (
	tailLines      int
	summarySession string
	summaryTool    string
	summaryFrom    string
	summaryTo      string
	summaryFormat  string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditSummaryCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	auditSummaryCmd.Flags().StringVar(&summarySession, "session", "", "Only entries from this session ID")
	auditSummaryCmd.Flags().StringVar(&summaryTool, "tool", "", "Only entries for this tool (e.g. fs_move)")
	auditSummaryCmd.Flags().StringVar(&summaryFrom, "from", "", "Start time filter (RFC3339)")
	auditSummaryCmd.Flags().StringVar(&summaryTo, "to", "", "End time filter (RFC3339)")
	auditSummaryCmd.Flags().StringVarP(&summaryFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained audit log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Show recent audit log entries",
	Long:  "Reads the last N entries from the JSONL audit log and pretty-prints them.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTail,
}

var auditSummaryCmd = &cobra.Command{
	Use:   "summary <path>",
	Short: "Summarize allow/deny/error decisions",
	Long:  "Filters the audit log by session, tool and time range and prints\neach decision followed by counts per decision and error kind.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditSummary,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified across %d session(s)\n", result.Lines, result.Sessions)
		return nil
	}
	if result.ErrorLine > 0 {
		return fmt.Errorf("FAILED at line %d: %s", result.ErrorLine, result.Error)
	}
	return fmt.Errorf("FAILED: %s", result.Error)
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	// Read all lines, keep last N
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	start := len(lines) - tailLines
	if start < 0 {
		start = 0
	}

	out := cmd.OutOrStdout()
	for _, line := range lines[start:] {
		var entry audit.Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Fprintln(out, line)
			continue
		}
		pretty, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Fprintln(out, string(pretty))
	}
	return nil
}

func parseTimeFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s time %q: %w", name, value, err)
	}
	return t, nil
}

func runAuditSummary(cmd *cobra.Command, args []string) error {
	filter := audit.Filter{SessionID: summarySession, Tool: summaryTool}
	var err error
	if filter.From, err = parseTimeFlag("from", summaryFrom); err != nil {
		return err
	}
	if filter.To, err = parseTimeFlag("to", summaryTo); err != nil {
		return err
	}

	report, err := audit.Summarize(args[0], filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch summaryFormat {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	default:
		fmt.Fprint(out, audit.FormatText(report))
	}
	return nil
}
