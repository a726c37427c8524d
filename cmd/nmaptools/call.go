package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/nmaptools/internal/sandbox"
	"github.com/hyperifyio/nmaptools/internal/tools"
)

func newCallCmd(a *app) *cobra.Command {
	var argsJSON, timeout string
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Run one tool and print its output",
		Long: `Run one tool. Arguments are a JSON object given with --args or on stdin.

On success the scan output is written to stdout. On failure a single JSON
line {"error":"...","kind":"..."} is written to stderr and the exit status
is 1.`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{quietAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readArgs(argsJSON, a.in)
			if err == nil && timeout != "" {
				raw, err = withTimeout(raw, timeout)
			}
			if err != nil {
				return a.fail(tools.InvalidInput{Field: "arguments", Rule: err.Error()})
			}
			svc, err := a.newService()
			if err != nil {
				return err
			}
			out := svc.Invoke(context.WithoutCancel(cmd.Context()), args[0], raw)
			if out.Failed() {
				return a.fail(out)
			}
			_, _ = io.WriteString(a.out, out.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "", "tool arguments as a JSON object (default: read stdin)")
	cmd.Flags().StringVar(&timeout, "timeout", "", "timeout override, e.g. 90s or 90 (seconds)")
	return cmd
}

func (a *app) fail(out tools.Outcome) error {
	_, _ = a.errOut.Write(append(sandbox.JSONError(string(out.Kind()), out.String()), '\n'))
	return exitCodeError{code: 1}
}

func readArgs(flagValue string, in io.Reader) (json.RawMessage, error) {
	raw := []byte(flagValue)
	if strings.TrimSpace(flagValue) == "" && in != nil {
		b, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("not valid JSON")
	}
	return raw, nil
}

// withTimeout sets timeout_sec on the argument object.
func withTimeout(raw json.RawMessage, value string) (json.RawMessage, error) {
	secs, err := parseTimeoutSeconds(value)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("must be a JSON object")
		}
	}
	fields["timeout_sec"] = json.RawMessage(fmt.Sprint(secs))
	return json.Marshal(fields)
}
