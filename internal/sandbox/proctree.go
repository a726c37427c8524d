package sandbox

import (
	"os/exec"

	"github.com/shirou/gopsutil/v3/process"
)

// Isolate prepares cmd so that its process and every descendant can be
// killed as a unit. It must be called before cmd.Start. Cancelling the
// command's context kills the whole tree.
func Isolate(cmd *exec.Cmd) {
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		KillTree(cmd.Process.Pid)
		return nil
	}
}

// KillTree kills pid together with every descendant it can discover.
// Descendants are collected before anything is signalled, since a dead
// parent no longer links to its children.
func KillTree(pid int) {
	if pid <= 0 {
		return
	}
	descendants := Descendants(pid)
	killProcessGroup(pid)
	for i := len(descendants) - 1; i >= 0; i-- {
		_ = descendants[i].Kill()
	}
	if p, err := process.NewProcess(int32(pid)); err == nil {
		_ = p.Kill()
	}
}

// Reap kills whatever is left in the process group led by pid. Called after
// Wait so that a child which forked and exited cannot leave work behind.
//
// The kernel keeps a pid reserved while a group with that id has members, so
// a live process under pid means the pid was reused and our group is empty.
// Reap leaves that unrelated group alone.
func Reap(pid int) {
	if pid <= 0 {
		return
	}
	if exists, err := process.PidExists(int32(pid)); err != nil || exists {
		return
	}
	killProcessGroup(pid)
}

// Descendants returns all transitive children of pid, parents before children.
// Lookup failures yield a partial (possibly empty) list.
func Descendants(pid int) []*process.Process {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	var out []*process.Process
	queue := []*process.Process{root}
	seen := map[int32]struct{}{root.Pid: {}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		children, err := p.Children()
		if err != nil {
			continue
		}
		for _, c := range children {
			if _, ok := seen[c.Pid]; ok {
				continue
			}
			seen[c.Pid] = struct{}{}
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// Alive reports whether pid is a live, non-zombie process.
func Alive(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	if err != nil || !ok {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	status, err := p.Status()
	if err != nil {
		return true
	}
	for _, s := range status {
		if s == process.Zombie {
			return false
		}
	}
	return true
}
