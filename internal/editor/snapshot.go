package editor

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// snapshotProcesses captures the current process table. The snapshot already
// excludes this process, anything running the same executable, and on Linux
// this process's whole family tree, since there helper detection by name is
// unreliable and the tool itself matches the editor's name.
func snapshotProcesses() ([]Snapshot, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	selfPID := int32(os.Getpid())
	selfExe := ""
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			selfExe = resolved
		} else {
			selfExe = exe
		}
	}

	snaps := make([]Snapshot, 0, len(procs))
	for _, p := range procs {
		if p.Pid == selfPID {
			continue
		}
		name, err := p.Name()
		if err != nil {
			continue
		}
		exe, _ := p.Exe()
		if selfExe != "" && exe != "" {
			resolved := exe
			if r, err := filepath.EvalSymlinks(exe); err == nil {
				resolved = r
			}
			if resolved == selfExe {
				continue
			}
		}
		cmdline, _ := p.CmdlineSlice()
		ppid, _ := p.Ppid()
		snaps = append(snaps, Snapshot{
			PID:     p.Pid,
			PPID:    ppid,
			Name:    name,
			ExePath: exe,
			Cmdline: cmdline,
		})
	}

	if runtime.GOOS == "linux" {
		snaps = excludeOwnFamily(snaps)
	}
	return snaps, nil
}

// excludeOwnFamily drops this process's ancestors (up to ten generations),
// all transitive descendants, and anything running under this binary's name.
func excludeOwnFamily(snaps []Snapshot) []Snapshot {
	parentOf := make(map[int32]int32, len(snaps))
	childrenOf := make(map[int32][]int32, len(snaps))
	for _, s := range snaps {
		parentOf[s.PID] = s.PPID
		childrenOf[s.PPID] = append(childrenOf[s.PPID], s.PID)
	}

	excluded := map[int32]bool{int32(os.Getpid()): true}

	ancestor := int32(os.Getppid())
	for i := 0; i < 10 && ancestor > 1; i++ {
		excluded[ancestor] = true
		next, ok := parentOf[ancestor]
		if !ok {
			break
		}
		ancestor = next
	}

	queue := []int32{int32(os.Getpid())}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range childrenOf[pid] {
			if !excluded[child] {
				excluded[child] = true
				queue = append(queue, child)
			}
		}
	}

	toolName := strings.ToLower(filepath.Base(os.Args[0]))
	kept := snaps[:0]
	for _, s := range snaps {
		if excluded[s.PID] {
			continue
		}
		if toolName != "" && strings.ToLower(s.Name) == toolName {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}
