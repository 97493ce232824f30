//go:build windows

package editor

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

const createNoWindow = 0x08000000

func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNoWindow,
		HideWindow:    true,
	}
}

// runTaskkill invokes the system kill utility for one PID. A process that is
// already gone is not an error.
func runTaskkill(args ...string) error {
	cmd := exec.Command("taskkill", args...)
	hideWindow(cmd)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.ToLower(string(out))
		if strings.Contains(msg, "not found") || strings.Contains(msg, "no such process") {
			return nil
		}
		return fmt.Errorf("taskkill failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func terminateProcess(pid int32) error {
	return runTaskkill("/PID", strconv.Itoa(int(pid)))
}

func killProcess(pid int32) error {
	return runTaskkill("/F", "/PID", strconv.Itoa(int(pid)))
}
