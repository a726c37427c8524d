package tools

import (
	"fmt"
	"strings"
	"time"
)

// Kind names an Outcome variant. The values are stable and appear in JSON
// error payloads and HTTP responses.
type Kind string

const (
	KindSuccess        Kind = "success"
	KindTimeout        Kind = "timeout"
	KindNonZeroExit    Kind = "non_zero_exit"
	KindBinaryNotFound Kind = "binary_not_found"
	KindInvalidInput   Kind = "invalid_input"
)

// Outcome is the result of one tool invocation. It is always exactly one of
// Success, Timeout, NonZeroExit, BinaryNotFound or InvalidInput.
type Outcome interface {
	Kind() Kind
	// Failed is false only for Success.
	Failed() bool
	// String renders the text returned to the caller.
	String() string
}

// Success carries the captured standard output of a zero exit.
type Success struct {
	Stdout    string
	Truncated bool
	Elapsed   time.Duration
}

// Timeout means the child was killed after exceeding Limit.
type Timeout struct {
	Elapsed time.Duration
	Limit   time.Duration
}

// NonZeroExit carries the exit code and captured standard error.
type NonZeroExit struct {
	Code      int
	Stderr    string
	Truncated bool
}

// BinaryNotFound means no process was started because the binary could not
// be resolved or launched.
type BinaryNotFound struct {
	Binary string
	Reason string
}

// InvalidInput names the offending field and the rule it broke.
type InvalidInput struct {
	Field string
	Rule  string
}

const truncatedNote = "\n[output truncated]"

func (Success) Kind() Kind        { return KindSuccess }
func (Timeout) Kind() Kind        { return KindTimeout }
func (NonZeroExit) Kind() Kind    { return KindNonZeroExit }
func (BinaryNotFound) Kind() Kind { return KindBinaryNotFound }
func (InvalidInput) Kind() Kind   { return KindInvalidInput }

func (Success) Failed() bool        { return false }
func (Timeout) Failed() bool        { return true }
func (NonZeroExit) Failed() bool    { return true }
func (BinaryNotFound) Failed() bool { return true }
func (InvalidInput) Failed() bool   { return true }

func (s Success) String() string {
	if s.Truncated {
		return s.Stdout + truncatedNote
	}
	return s.Stdout
}

func (t Timeout) String() string {
	return fmt.Sprintf("timeout exceeded: scan did not finish within %s (ran %s) and was terminated",
		t.Limit, t.Elapsed.Round(time.Millisecond))
}

func (n NonZeroExit) String() string {
	msg := strings.TrimSpace(n.Stderr)
	if msg == "" {
		msg = "no diagnostic output"
	}
	if n.Truncated {
		msg += truncatedNote
	}
	return fmt.Sprintf("scan failed with exit code %d: %s", n.Code, msg)
}

func (b BinaryNotFound) String() string {
	if b.Reason == "" {
		return fmt.Sprintf("binary not found: %q is not installed or not in PATH", b.Binary)
	}
	return fmt.Sprintf("binary not found: %q: %s", b.Binary, b.Reason)
}

func (i InvalidInput) String() string {
	return fmt.Sprintf("invalid input: %s: %s", i.Field, i.Rule)
}
