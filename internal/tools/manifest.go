package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolSpec is one entry of a tools.json manifest. The shape is shared with
// agent runners that execute tools as subprocesses taking JSON on stdin.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
	Command     []string        `json:"command"`
	TimeoutSec  int             `json:"timeoutSec,omitempty"`
	// EnvPassthrough is an allowlist of environment variable names passed from
	// the runner to the tool process.
	EnvPassthrough []string `json:"envPassthrough,omitempty"`
}

// Manifest is the root of tools.json.
type Manifest struct {
	Tools []ToolSpec `json:"tools"`
}

// BuildManifest describes every operation as a subprocess tool invoked as
// `<self> call <name>`. Timeouts reflect svc's effective defaults.
func BuildManifest(svc *Service, self string, envPassthrough []string) (Manifest, error) {
	if strings.TrimSpace(self) == "" {
		return Manifest{}, fmt.Errorf("manifest: command path is required")
	}
	env, err := normalizeEnvAllowlist(envPassthrough)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: %w", err)
	}
	var man Manifest
	for _, op := range Operations() {
		man.Tools = append(man.Tools, ToolSpec{
			Name:           op.Name,
			Description:    op.Description,
			Schema:         op.Schema,
			Command:        []string{self, "call", op.Name},
			TimeoutSec:     int(svc.Timeout(op).Seconds()),
			EnvPassthrough: env,
		})
	}
	return man, nil
}

// normalizeEnvAllowlist normalizes, validates, and de-duplicates environment
// variable names. It enforces the pattern ^[A-Z_][A-Z0-9_]*$ after converting
// to upper case and trimming ASCII whitespace. Order of first occurrence is
// preserved. Returns an error describing the first invalid entry.
func normalizeEnvAllowlist(keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for idx, k := range keys {
		trimmed := strings.TrimSpace(k)
		if trimmed == "" {
			return nil, fmt.Errorf("env_passthrough[%d]: empty name", idx)
		}
		upper := strings.ToUpper(trimmed)
		if !isValidEnvName(upper) {
			return nil, fmt.Errorf("env_passthrough[%d]: invalid name %q (must match [A-Z_][A-Z0-9_]*)", idx, k)
		}
		if _, ok := seen[upper]; ok {
			continue
		}
		seen[upper] = struct{}{}
		out = append(out, upper)
	}
	return out, nil
}

func isValidEnvName(s string) bool {
	if len(s) == 0 {
		return false
	}
	c := s[0]
	if !((c >= 'A' && c <= 'Z') || c == '_') {
		return false
	}
	for i := 1; i < len(s); i++ {
		c = s[i]
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}
