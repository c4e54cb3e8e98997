package hook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/EternisAI/claude-watch/internal/permission"
)

const (
	EventName = "PreToolUse"

	ReasonDenied        = "Denied by permissions"
	ReasonRemoteDefault = "Decision from remote daemon"
	ReasonUnreachable   = "Daemon unreachable, falling back to terminal"
	ReasonReadFailed    = "Failed to read stdin"
	ReasonParseFailed   = "Failed to parse stdin JSON"
	ReasonUnexpected    = "Unexpected error in hook"
)

var (
	ErrUnreachable = errors.New("daemon unreachable")
	ErrMalformed   = errors.New("malformed hook input")
)

// Input is the payload the agent writes to the hook's stdin.
type Input struct {
	SessionID      string         `json:"session_id"`
	ToolName       string         `json:"tool_name"`
	ToolInput      map[string]any `json:"tool_input"`
	Cwd            string         `json:"cwd"`
	PermissionMode string         `json:"permission_mode,omitempty"`
}

// Verdict is an explicit decision. A nil *Verdict means the hook defers.
type Verdict struct {
	Decision permission.Decision
	Reason   string
}

type Output struct {
	HookSpecificOutput SpecificOutput `json:"hookSpecificOutput"`
}

type SpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason"`
}

// Consulter escalates a tool call to the daemon and waits for the outcome.
type Consulter interface {
	Consult(ctx context.Context, in Input) (Verdict, error)
}

type Switch interface {
	Enabled() bool
}

type Pipeline struct {
	remote Switch
	rules  func() permission.Rules
	daemon Consulter
}

func NewPipeline(remote Switch, settingsPath string, daemon Consulter) *Pipeline {
	return &Pipeline{
		remote: remote,
		rules:  func() permission.Rules { return permission.LoadRules(settingsPath) },
		daemon: daemon,
	}
}

// Run decides a single intercepted tool call read from r. It never panics
// and never returns an error: failures degrade to an ask verdict.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (verdict *Verdict) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Hook pipeline panicked", "panic", rec)
			verdict = ask(ReasonUnexpected)
		}
	}()

	if !p.remote.Enabled() {
		return nil
	}

	in, err := ParseInput(r)
	if err != nil {
		slog.Debug("Rejecting hook input", "error", err)
		if errors.Is(err, errReadInput) {
			return ask(ReasonReadFailed)
		}
		return ask(ReasonParseFailed)
	}

	if permission.IsAlwaysAllowed(in.ToolName) {
		return nil
	}

	switch permission.Decide(p.rules(), in.ToolName, in.ToolInput) {
	case permission.Allow:
		return nil
	case permission.Deny:
		return &Verdict{Decision: permission.Deny, Reason: ReasonDenied}
	}

	return p.consult(ctx, in)
}

func (p *Pipeline) consult(ctx context.Context, in Input) *Verdict {
	v, err := p.daemon.Consult(ctx, in)
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) {
			slog.Warn("Daemon rejected tool call", "status", status.Code)
			return ask(fmt.Sprintf("Daemon returned HTTP %d, falling back to terminal", status.Code))
		}
		slog.Warn("Daemon unreachable", "error", err)
		return ask(ReasonUnreachable)
	}

	switch v.Decision {
	case permission.Allow, permission.Deny, permission.Ask:
	default:
		slog.Warn("Daemon returned an unusable decision", "decision", v.Decision)
		v.Decision = permission.Ask
	}
	if v.Reason == "" {
		v.Reason = ReasonRemoteDefault
	}
	return &v
}

var errReadInput = fmt.Errorf("%w: read failed", ErrMalformed)

// ParseInput decodes the hook payload. Every failure wraps ErrMalformed.
func ParseInput(r io.Reader) (Input, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", errReadInput, err)
	}

	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.ToolInput == nil {
		in.ToolInput = map[string]any{}
	}
	return in, nil
}

// WriteOutput renders a verdict in the agent's hook protocol.
func WriteOutput(w io.Writer, v Verdict) error {
	out := Output{HookSpecificOutput: SpecificOutput{
		HookEventName:            EventName,
		PermissionDecision:       v.Decision.String(),
		PermissionDecisionReason: v.Reason,
	}}
	return json.NewEncoder(w).Encode(out)
}

func ask(reason string) *Verdict {
	return &Verdict{Decision: permission.Ask, Reason: reason}
}
