package permission

// alwaysAllowed holds tools the pipeline never escalates: read-only tools,
// planning/UI tools, file edits the agent already governs, and task/team tools.
var alwaysAllowed = map[string]struct{}{
	"Read":                 {},
	"Glob":                 {},
	"Grep":                 {},
	"Task":                 {},
	"TaskOutput":           {},
	"WebSearch":            {},
	"WebFetch":             {},
	"ListMcpResourcesTool": {},
	"ReadMcpResourceTool":  {},
	"AskUserQuestion":      {},
	"EnterPlanMode":        {},
	"ExitPlanMode":         {},
	"TaskCreate":           {},
	"TaskGet":              {},
	"TaskUpdate":           {},
	"TaskList":             {},
	"Edit":                 {},
	"Write":                {},
	"NotebookEdit":         {},
	"MultiEdit":            {},
	"Skill":                {},
	"TeamCreate":           {},
	"TeamDelete":           {},
	"SendMessage":          {},
	"TaskStop":             {},
}

func IsAlwaysAllowed(toolName string) bool {
	_, ok := alwaysAllowed[toolName]
	return ok
}
