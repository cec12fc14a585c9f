// Package proctree enumerates and controls Linux process trees through
// /proc. It backs the per-session resource sampler and the kill path.
package proctree

import (
	"sort"
	"syscall"

	"github.com/prometheus/procfs"
)

// Usage holds one process's resource counters read from /proc/[pid]/stat.
type Usage struct {
	ResidentBytes uint64
	CPUSeconds    float64
	Threads       int
}

// Snapshot is the pid set of a process tree at one instant, root first.
type Snapshot struct {
	Root     int
	Children []int
}

// All returns root plus children as a single slice.
func (s Snapshot) All() []int {
	out := make([]int, 0, len(s.Children)+1)
	out = append(out, s.Root)
	out = append(out, s.Children...)
	return out
}

// Take enumerates the descendants of root by walking parent pids from a
// single AllProcs pass. Processes that vanish mid-walk are silently
// dropped. Children come back sorted for stable iteration.
func Take(fs procfs.FS, root int) Snapshot {
	snap := Snapshot{Root: root}

	procs, err := fs.AllProcs()
	if err != nil {
		return snap
	}

	parent := make(map[int]int, len(procs))
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			continue
		}
		parent[p.PID] = stat.PPID
	}

	// BFS over the parent map. The map is a fixed snapshot, so a pid
	// reparented to init after its parent died is not picked up; the
	// zombie scan covers that case at session end.
	members := map[int]bool{root: true}
	for {
		grew := false
		for pid, ppid := range parent {
			if !members[pid] && members[ppid] {
				members[pid] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	for pid := range members {
		if pid != root {
			snap.Children = append(snap.Children, pid)
		}
	}
	sort.Ints(snap.Children)
	return snap
}

// ReadUsage reads resource counters for one pid. The bool is false when
// the process no longer exists or /proc is unreadable.
func ReadUsage(fs procfs.FS, pid int) (Usage, bool) {
	proc, err := fs.Proc(pid)
	if err != nil {
		return Usage{}, false
	}
	stat, err := proc.Stat()
	if err != nil {
		return Usage{}, false
	}
	return Usage{
		ResidentBytes: uint64(stat.ResidentMemory()),
		CPUSeconds:    stat.CPUTime(),
		Threads:       int(stat.NumThreads),
	}, true
}

// AliveNonZombie reports whether pid exists and is not in zombie state.
// A zombie has exited; only its exit status lingers until reaped.
func AliveNonZombie(fs procfs.FS, pid int) bool {
	proc, err := fs.Proc(pid)
	if err != nil {
		return false
	}
	stat, err := proc.Stat()
	if err != nil {
		return false
	}
	return stat.State != "Z"
}

// ProcName returns the comm name for pid, or empty if unavailable.
func ProcName(fs procfs.FS, pid int) string {
	proc, err := fs.Proc(pid)
	if err != nil {
		return ""
	}
	comm, err := proc.Comm()
	if err != nil {
		return ""
	}
	return comm
}

// KillTree re-enumerates root's tree and SIGKILLs children before the
// root itself, so the root cannot respawn workers mid-kill. Returns
// every pid that was signalled.
func KillTree(fs procfs.FS, root int) []int {
	snap := Take(fs, root)

	var killed []int
	for _, pid := range snap.Children {
		if syscall.Kill(pid, syscall.SIGKILL) == nil {
			killed = append(killed, pid)
		}
	}
	if syscall.Kill(root, syscall.SIGKILL) == nil {
		killed = append(killed, root)
	}
	return killed
}

// SignalRoot delivers sig to root only, for the graceful stop phase.
func SignalRoot(root int, sig syscall.Signal) error {
	return syscall.Kill(root, sig)
}
