package tools

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type invocationKey struct{}

// invocation identifies one tool call across log lines.
type invocation struct {
	ID   string
	Tool string
}

// WithInvocation tags ctx with a fresh invocation id for tool. The executor
// copies both onto its audit entry.
func WithInvocation(ctx context.Context, tool string) context.Context {
	return context.WithValue(ctx, invocationKey{}, invocation{ID: uuid.NewString(), Tool: tool})
}

// InvocationID returns the id attached by WithInvocation, or "".
func InvocationID(ctx context.Context) string {
	inv, _ := ctx.Value(invocationKey{}).(invocation)
	return inv.ID
}

func invocationFrom(ctx context.Context) invocation {
	inv, _ := ctx.Value(invocationKey{}).(invocation)
	return inv
}

type auditRecord struct {
	Argv        []string
	Limit       time.Duration
	Exit        int
	StdoutBytes int
	StderrBytes int
	Truncated   bool
	EnvKeys     []string
}

// writeAudit emits one structured line per run. Argv is redacted.
func (e *Executor) writeAudit(ctx context.Context, rec auditRecord, start time.Time, out Outcome) {
	inv := invocationFrom(ctx)
	fields := logrus.Fields{
		"event":        "tool_run",
		"tool":         inv.Tool,
		"argv":         e.redact.applyAll(rec.Argv),
		"exit":         rec.Exit,
		"ms":           timeNow().Sub(start).Milliseconds(),
		"limit_ms":     rec.Limit.Milliseconds(),
		"stdout_bytes": rec.StdoutBytes,
		"stderr_bytes": rec.StderrBytes,
		"truncated":    rec.Truncated,
		"outcome":      string(out.Kind()),
	}
	if inv.ID != "" {
		fields["invocation_id"] = inv.ID
	}
	if len(rec.EnvKeys) > 0 {
		fields["env_keys"] = append([]string(nil), rec.EnvKeys...)
	}
	entry := e.audit.WithFields(fields)
	if out.Failed() {
		entry.Warn("tool run failed")
		return
	}
	entry.Info("tool run finished")
}
