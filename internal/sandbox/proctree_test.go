//go:build unix

package sandbox

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKillTree_TakesDownGrandchildren(t *testing.T) {
	// The shell prints the pid of a background sleeper, then waits on it.
	cmd := exec.Command("/bin/sh", "-c", "sleep 30 & echo $!; wait")
	Isolate(cmd)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	line, err := bufio.NewReader(stdout).ReadString('\n')
	require.NoError(t, err)
	grandchild, err := strconv.Atoi(strings.TrimSpace(line))
	require.NoError(t, err)
	require.True(t, Alive(grandchild), "grandchild should be running before kill")

	KillTree(cmd.Process.Pid)
	_ = cmd.Wait()

	require.Eventually(t, func() bool { return !Alive(grandchild) }, 3*time.Second, 20*time.Millisecond)
	require.False(t, Alive(cmd.Process.Pid))
}

func TestIsolate_ContextCancelKillsGroup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", "sleep 30 & echo $!; wait")
	Isolate(cmd)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	line, err := bufio.NewReader(stdout).ReadString('\n')
	require.NoError(t, err)
	grandchild, err := strconv.Atoi(strings.TrimSpace(line))
	require.NoError(t, err)

	start := time.Now()
	_ = cmd.Wait()
	require.Less(t, time.Since(start), 5*time.Second)
	require.Eventually(t, func() bool { return !Alive(grandchild) }, 3*time.Second, 20*time.Millisecond)
}

func TestReap_KillsLeftoversAfterLeaderExits(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "sleep 30 & echo $!")
	Isolate(cmd)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	line, err := bufio.NewReader(stdout).ReadString('\n')
	require.NoError(t, err)
	orphan, err := strconv.Atoi(strings.TrimSpace(line))
	require.NoError(t, err)
	_ = cmd.Wait()
	require.True(t, Alive(orphan), "background sleeper outlives its shell")

	Reap(cmd.Process.Pid)
	require.Eventually(t, func() bool { return !Alive(orphan) }, 3*time.Second, 20*time.Millisecond)
}

func TestReap_LeavesLivePidAlone(t *testing.T) {
	// A live process under the pid stands in for a reused pid.
	cmd := exec.Command("sleep", "30")
	Isolate(cmd)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		KillTree(cmd.Process.Pid)
		_ = cmd.Wait()
	})

	Reap(cmd.Process.Pid)
	time.Sleep(100 * time.Millisecond)
	require.True(t, Alive(cmd.Process.Pid))
}
