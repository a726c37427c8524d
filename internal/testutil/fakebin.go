// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// FakeBinary writes a POSIX shell script named name into a test-scoped
// temporary directory and returns its absolute path. body is the script
// without the shebang line. Tests using it are skipped on Windows.
func FakeBinary(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binaries are shell scripts")
	}
	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\n" + strings.TrimLeft(body, "\n")
	if !strings.HasSuffix(script, "\n") {
		script += "\n"
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	return path
}

// PIDFile returns a path inside a fresh temp dir that a fake binary can
// write process ids into.
func PIDFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "pids")
}

// ReadPIDs parses whitespace separated process ids from path.
func ReadPIDs(t *testing.T, path string) []int32 {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	var pids []int32
	for _, f := range strings.Fields(string(data)) {
		pid, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			t.Fatalf("bad pid %q in %s: %v", f, path, err)
		}
		pids = append(pids, int32(pid))
	}
	return pids
}

// WaitGone polls until none of pids is a live, non-zombie process or the
// deadline passes. It returns the pids still alive.
func WaitGone(pids []int32, within time.Duration) []int32 {
	deadline := time.Now().Add(within)
	for {
		var alive []int32
		for _, pid := range pids {
			if running(pid) {
				alive = append(alive, pid)
			}
		}
		if len(alive) == 0 || time.Now().After(deadline) {
			return alive
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func running(pid int32) bool {
	ok, err := process.PidExists(pid)
	if err != nil || !ok {
		return false
	}
	p, err := process.NewProcess(pid)
	if err != nil {
		return false
	}
	status, err := p.Status()
	if err != nil {
		return false
	}
	for _, s := range status {
		if s == process.Zombie {
			return false
		}
	}
	return true
}
