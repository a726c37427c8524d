//go:build !unix

package sandbox

import "os/exec"

// Process groups are a Unix concept; elsewhere KillTree relies on the
// descendant walk alone.
func setProcessGroup(*exec.Cmd) {}

func killProcessGroup(int) {}
