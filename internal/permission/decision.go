package permission

// Decision is the outcome of evaluating a tool call.
type Decision string

const (
	Allow   Decision = "allow"
	Deny    Decision = "deny"
	Ask     Decision = "ask"
	Unknown Decision = "unknown"
)

func (d Decision) String() string {
	return string(d)
}

// Rules is a read-only snapshot of allow/deny patterns.
type Rules struct {
	Allow []string `json:"allow"`
	Deny  []string `json:"deny"`
}

// Decide evaluates deny patterns first, then allow patterns. Deny always wins.
func Decide(rules Rules, toolName string, toolInput map[string]any) Decision {
	for _, pattern := range rules.Deny {
		if Match(pattern, toolName, toolInput) {
			return Deny
		}
	}

	for _, pattern := range rules.Allow {
		if Match(pattern, toolName, toolInput) {
			return Allow
		}
	}

	return Unknown
}
