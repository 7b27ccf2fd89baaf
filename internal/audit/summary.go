package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Filter selects entries for Summarize. Zero fields match everything.
type Filter struct {
	SessionID string
	Tool      string
	From      time.Time
	To        time.Time
}

func (f Filter) match(e Entry) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Tool != "" && e.Tool != f.Tool {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

// Summary counts decisions over the selected entries.
type Summary struct {
	Total          int            `json:"total"`
	Allowed        int            `json:"allowed"`
	Denied         int            `json:"denied"`
	Errored        int            `json:"errored"`
	ByTool         map[string]int `json:"by_tool"`
	ByKind         map[string]int `json:"by_kind"`
	FirstTimestamp string         `json:"first_timestamp,omitempty"`
	LastTimestamp  string         `json:"last_timestamp,omitempty"`
}

// Report holds the selected entries and their summary.
type Report struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Summarize reads the log at path and returns the entries matching filter.
// Malformed lines are skipped.
func Summarize(path string, filter Filter) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	report := &Report{Summary: Summary{ByTool: map[string]int{}, ByKind: map[string]int{}}}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if !filter.match(entry) {
			continue
		}
		report.Entries = append(report.Entries, entry)
		report.Summary.add(entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return report, nil
}

func (s *Summary) add(e Entry) {
	s.Total++
	switch e.Decision {
	case DecisionAllow:
		s.Allowed++
	case DecisionDeny:
		s.Denied++
	case DecisionError:
		s.Errored++
	}
	s.ByTool[e.Tool]++
	if e.Kind != "" {
		s.ByKind[e.Kind]++
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}

// FormatText renders a report as one line per entry plus a summary line.
func FormatText(r *Report) string {
	if len(r.Entries) == 0 {
		return "No entries found.\n"
	}
	var b strings.Builder
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "%-24s %-6s %-14s %-16s %s\n",
			e.Timestamp, strings.ToUpper(e.Decision), e.Tool, e.Kind, strings.Join(e.Paths, " -> "))
	}
	fmt.Fprintf(&b, "Summary: %d total, %d allow, %d deny, %d error", r.Summary.Total, r.Summary.Allowed, r.Summary.Denied, r.Summary.Errored)
	if len(r.Summary.ByKind) > 0 {
		kinds := make([]string, 0, len(r.Summary.ByKind))
		for k, n := range r.Summary.ByKind {
			kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
		}
		sort.Strings(kinds)
		fmt.Fprintf(&b, " (%s)", strings.Join(kinds, ", "))
	}
	b.WriteString("\n")
	return b.String()
}
