package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"
)

// DefaultMaxBytes is the capture cap used when a caller passes a zero or negative limit.
const DefaultMaxBytes = 1 << 20

// BoundedBuffer is an io.Writer that keeps at most capBytes of output.
// Writes past the cap are discarded but still reported as fully written, so a
// child process writing into a pipe never blocks or fails because of the cap.
// Use Truncated() to learn whether anything was dropped.
type BoundedBuffer struct {
	buf       bytes.Buffer
	capBytes  int
	truncated bool
}

// NewBoundedBuffer creates a new BoundedBuffer holding up to maxBytes.
func NewBoundedBuffer(maxBytes int) *BoundedBuffer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &BoundedBuffer{capBytes: maxBytes}
}

// Write appends p up to the remaining capacity and drops the rest.
func (b *BoundedBuffer) Write(p []byte) (int, error) {
	remaining := b.capBytes - b.buf.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > remaining {
		_, _ = b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

// Bytes returns the current contents (may be truncated if cap exceeded).
func (b *BoundedBuffer) Bytes() []byte { return b.buf.Bytes() }

// String returns the current contents as string (may be truncated).
func (b *BoundedBuffer) String() string { return b.buf.String() }

// Len returns the number of retained bytes.
func (b *BoundedBuffer) Len() int { return b.buf.Len() }

// Truncated reports whether any write exceeded the cap.
func (b *BoundedBuffer) Truncated() bool { return b.truncated }

// WithWallTimeout returns a context that expires after d and ignores
// cancellation of parent. Values of parent stay visible.
// If d <= 0, a conservative default of one second is used.
func WithWallTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = time.Second
	}
	return context.WithTimeout(context.WithoutCancel(parent), d)
}

// JSONError builds the single-line error payload written to stderr by CLI tools.
func JSONError(kind, message string) []byte {
	b, err := json.Marshal(struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}{Error: collapseLines(message), Kind: kind})
	if err != nil {
		return []byte(`{"error":"unencodable error","kind":"internal"}`)
	}
	return b
}

func collapseLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
