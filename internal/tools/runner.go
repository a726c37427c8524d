package tools

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyperifyio/nmaptools/internal/sandbox"
)

// Runner executes an argument vector under a wall-clock limit and classifies
// the result. Implementations must be safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, argv []string, limit time.Duration) Outcome
}

// ExecutorConfig holds the read-only settings of an Executor.
type ExecutorConfig struct {
	// MaxOutputBytes caps each of stdout and stderr.
	MaxOutputBytes int
	// KillGrace bounds how long Wait keeps draining pipes after the child
	// exits or is killed.
	KillGrace time.Duration
	// EnvPassthrough names parent environment variables copied to the child
	// in addition to PATH and HOME.
	EnvPassthrough []string
	// Redact lists regexes or literals masked in audit argv.
	Redact []string
}

// Executor runs nmap (or any binary) without a shell. The zero value is not
// usable; construct with NewExecutor.
type Executor struct {
	cfg      ExecutorConfig
	lookPath func(string) (string, error)
	redact   redactionPatterns
	audit    *logrus.Entry
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithLookPath replaces exec.LookPath for binary resolution.
func WithLookPath(fn func(string) (string, error)) ExecutorOption {
	return func(e *Executor) { e.lookPath = fn }
}

// WithAuditLogger sends audit entries to log instead of the standard logger.
func WithAuditLogger(log *logrus.Logger) ExecutorOption {
	return func(e *Executor) { e.audit = logrus.NewEntry(log) }
}

// NewExecutor validates cfg.EnvPassthrough and returns a ready Executor.
func NewExecutor(cfg ExecutorConfig, opts ...ExecutorOption) (*Executor, error) {
	env, err := normalizeEnvAllowlist(cfg.EnvPassthrough)
	if err != nil {
		return nil, err
	}
	cfg.EnvPassthrough = env
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = sandbox.DefaultMaxBytes
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = 2 * time.Second
	}
	e := &Executor{
		cfg:      cfg,
		lookPath: exec.LookPath,
		redact:   gatherRedactionPatterns(cfg.Redact),
		audit:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// timeNow is a package-level clock to enable deterministic tests.
var timeNow = time.Now

// buildEnvironment constructs a minimal environment for the child and
// returns the keys that were passed through, for the audit entry.
func buildEnvironment(allow []string) (env []string, passedKeys []string) {
	if v := os.Getenv("PATH"); v != "" {
		env = append(env, "PATH="+v)
	}
	if v := os.Getenv("HOME"); v != "" {
		env = append(env, "HOME="+v)
	}
	for _, key := range allow {
		if key == "PATH" || key == "HOME" {
			continue
		}
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
			passedKeys = append(passedKeys, key)
		}
	}
	return env, passedKeys
}

// Run executes argv. Cancellation of ctx is ignored: once started, the child
// runs until it exits or limit elapses, whichever comes first. On timeout the
// child and all of its descendants are killed.
func (e *Executor) Run(ctx context.Context, argv []string, limit time.Duration) Outcome {
	if len(argv) == 0 || argv[0] == "" {
		return InvalidInput{Field: "binary", Rule: "must not be empty"}
	}
	rec := auditRecord{Argv: argv, Limit: limit, Exit: -1}
	start := timeNow()

	path, err := e.lookPath(argv[0])
	if err != nil {
		out := BinaryNotFound{Binary: argv[0], Reason: lookupReason(err)}
		e.writeAudit(ctx, rec, start, out)
		return out
	}

	runCtx, cancel := sandbox.WithWallTimeout(ctx, limit)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, argv[1:]...)
	env, passed := buildEnvironment(e.cfg.EnvPassthrough)
	cmd.Env = env
	rec.EnvKeys = passed
	stdout := sandbox.NewBoundedBuffer(e.cfg.MaxOutputBytes)
	stderr := sandbox.NewBoundedBuffer(e.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	sandbox.Isolate(cmd)
	cmd.WaitDelay = e.cfg.KillGrace

	if err := cmd.Start(); err != nil {
		out := BinaryNotFound{Binary: argv[0], Reason: err.Error()}
		e.writeAudit(ctx, rec, start, out)
		return out
	}
	pid := cmd.Process.Pid
	waitErr := cmd.Wait()
	elapsed := timeNow().Sub(start)
	sandbox.Reap(pid)

	out := classify(runCtx, cmd.ProcessState, waitErr, stdout, stderr, elapsed, limit)
	if cmd.ProcessState != nil {
		rec.Exit = cmd.ProcessState.ExitCode()
	}
	rec.StdoutBytes, rec.StderrBytes = stdout.Len(), stderr.Len()
	rec.Truncated = stdout.Truncated() || stderr.Truncated()
	e.writeAudit(ctx, rec, start, out)
	return out
}

// classify maps the finished command onto exactly one Outcome.
func classify(ctx context.Context, state *os.ProcessState, waitErr error, stdout, stderr *sandbox.BoundedBuffer, elapsed, limit time.Duration) Outcome {
	exitedCleanly := state != nil && state.Success()
	if waitErr == nil || (exitedCleanly && errors.Is(waitErr, exec.ErrWaitDelay)) {
		return Success{Stdout: stdout.String(), Truncated: stdout.Truncated(), Elapsed: elapsed}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Timeout{Elapsed: elapsed, Limit: limit}
	}
	code := -1
	if state != nil {
		code = state.ExitCode()
	}
	msg := stderr.String()
	if msg == "" {
		msg = waitErr.Error()
	}
	return NonZeroExit{Code: code, Stderr: msg, Truncated: stderr.Truncated()}
}

func lookupReason(err error) string {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return "not installed or not in PATH"
	case errors.Is(err, exec.ErrDot):
		return "resolves to the current directory, use an absolute path"
	case errors.Is(err, os.ErrNotExist):
		return "no such file"
	case errors.Is(err, os.ErrPermission):
		return "not executable"
	default:
		return err.Error()
	}
}
