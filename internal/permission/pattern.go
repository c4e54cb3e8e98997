package permission

import "strings"

const (
	bashTool     = "Bash"
	commandField = "command"
	legacyMarker = ":*"
)

// Match reports whether pattern matches the tool call. Supported forms:
//
//	Name        exact tool name
//	Prefix*     tool name prefix
//	Name(Arg)   exact tool name and an argument value starting with Arg minus its trailing wildcard
//
// Anything else never matches.
func Match(pattern, toolName string, toolInput map[string]any) bool {
	if name, arg, ok := splitArgPattern(pattern); ok {
		if toolName != name {
			return false
		}
		prefix := argPrefix(arg)
		for _, value := range checkedValues(toolName, toolInput) {
			if strings.HasPrefix(value, prefix) {
				return true
			}
		}
		return false
	}

	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(toolName, strings.TrimSuffix(pattern, "*"))
	}

	return toolName == pattern
}

// splitArgPattern parses "Name(Arg)". Name must be non-empty and free of "(",
// Arg must be non-empty and the pattern must end with ")".
func splitArgPattern(pattern string) (name, arg string, ok bool) {
	open := strings.IndexByte(pattern, '(')
	if open <= 0 || !strings.HasSuffix(pattern, ")") {
		return "", "", false
	}
	arg = pattern[open+1 : len(pattern)-1]
	if arg == "" {
		return "", "", false
	}
	return pattern[:open], arg, true
}

// argPrefix strips the trailing wildcard: "npm:*" and "npm*" become "npm" when
// the legacy colon marker is present, otherwise "npm *" and "npm*" become "npm".
func argPrefix(arg string) string {
	if strings.Contains(arg, legacyMarker) {
		if strings.HasSuffix(arg, legacyMarker) {
			return strings.TrimSuffix(arg, legacyMarker)
		}
		return strings.TrimSuffix(arg, "*")
	}
	if strings.HasSuffix(arg, " *") {
		return strings.TrimSuffix(arg, " *")
	}
	return strings.TrimSuffix(arg, "*")
}

func checkedValues(toolName string, toolInput map[string]any) []string {
	if toolName == bashTool {
		if command, ok := toolInput[commandField].(string); ok {
			return []string{command}
		}
	}

	values := make([]string, 0, len(toolInput))
	for _, v := range toolInput {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return values
}
