// Package mcpserver exposes the tool table over the Model Context Protocol.
package mcpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/hyperifyio/nmaptools/internal/tools"
)

// ServerName is announced to MCP clients during initialize.
const ServerName = "nmap-mcp-server"

// Invoker runs one tool call. *tools.Service implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, raw json.RawMessage) tools.Outcome
}

// New registers every operation on a fresh MCP server.
func New(inv Invoker, version string, logger *logrus.Logger) *server.MCPServer {
	s := server.NewMCPServer(ServerName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	log := logger.WithField("component", "mcp")
	for _, op := range tools.Operations() {
		s.AddTool(mcp.NewToolWithRawSchema(op.Name, op.Description, op.Schema), handler(inv, op.Name, log))
	}
	return s
}

// handler adapts an Outcome to a tool result. Failed outcomes are reported
// as tool errors so the protocol exchange itself always succeeds.
func handler(inv Invoker, name string, log *logrus.Entry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.GetRawArguments())
		if err != nil {
			return mcp.NewToolResultError("invalid input: arguments: not encodable as JSON"), nil
		}
		out := inv.Invoke(ctx, name, raw)
		if out.Failed() {
			log.WithFields(logrus.Fields{"tool": name, "kind": out.Kind()}).Debug("tool call failed")
			return mcp.NewToolResultError(out.String()), nil
		}
		return mcp.NewToolResultText(out.String()), nil
	}
}

// ServeStdio serves s over newline-delimited JSON-RPC on in/out until ctx
// is done or in reaches EOF. Each message is handled on its own goroutine so
// a long scan never holds up other calls; responses are written whole, one
// per line, in completion order. Nothing but protocol frames is written to
// out.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer, logger *logrus.Logger) error {
	log := logger.WithField("component", "mcp")
	log.WithField("server", ServerName).Info("serving MCP over stdio")

	w := &frameWriter{out: out}
	var wg sync.WaitGroup
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readFrames(ctx, in, lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp := s.HandleMessage(ctx, line)
				if resp == nil {
					return
				}
				if err := w.write(resp); err != nil {
					log.WithError(err).Error("failed to write MCP response")
				}
			}()
		case err := <-readErr:
			wg.Wait()
			if err == nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read MCP input: %w", err)
		}
	}
}

// readFrames sends every non-empty line of in to lines.
func readFrames(ctx context.Context, in io.Reader, lines chan<- []byte) error {
	r := bufio.NewReader(in)
	for {
		line, err := r.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			select {
			case lines <- trimmed:
			case <-ctx.Done():
				return nil
			}
		}
		if err != nil {
			return err
		}
	}
}

// frameWriter serialises concurrent responses onto one stream.
type frameWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (f *frameWriter) write(msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err = f.out.Write(append(b, '\n'))
	return err
}
