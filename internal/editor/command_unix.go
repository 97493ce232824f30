//go:build !windows

package editor

import (
	"errors"
	"os/exec"
	"syscall"
)

func terminateProcess(pid int32) error {
	return ignoreGone(syscall.Kill(int(pid), syscall.SIGTERM))
}

func killProcess(pid int32) error {
	return ignoreGone(syscall.Kill(int(pid), syscall.SIGKILL))
}

// A process that exited between enumeration and signaling is not an error.
func ignoreGone(err error) error {
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

func hideWindow(*exec.Cmd) {}
