package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseTimeoutSeconds reads a --timeout value as whole seconds. It accepts Go
// duration strings ("90s", "5m") or a bare integer meaning seconds.
func parseTimeoutSeconds(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timeout")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("timeout must be at least 1 second, got %d", n)
		}
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %q", s)
	}
	if d < time.Second {
		return 0, fmt.Errorf("timeout must be at least 1s, got %s", d)
	}
	return int(d / time.Second), nil
}
