package audit

// Decision values recorded for each tool call.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
	DecisionError = "error"
)

// Entry is one line in the hash-chained JSONL audit log.
// Only concrete field types are used so json.Marshal output, and therefore
// the chain hash, is deterministic.
type Entry struct {
	Timestamp string   `json:"ts"`
	SessionID string   `json:"session_id"`
	Transport string   `json:"transport"`
	Tool      string   `json:"tool"`
	Paths     []string `json:"paths"`
	Decision  string   `json:"decision"`
	Kind      string   `json:"kind,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	PrevHash  string   `json:"prev_hash"`
}
