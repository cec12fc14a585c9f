package session

import (
	"sync"
	"time"

	"github.com/prometheus/procfs"

	"github.com/avolkov/procscope/internal/proctree"
)

// sampler walks the child's process tree on a fixed interval and emits
// aggregated MetricSamples. It also remembers every pid it has ever
// observed, which feeds the zombie scan at session end.
type sampler struct {
	fs       procfs.FS
	root     int
	interval time.Duration
	out      chan<- MetricSample

	mu   sync.Mutex
	seen map[int]bool

	// cumulative CPU seconds per pid as of the previous tick
	prevCPU map[int]float64
}

func newSampler(fs procfs.FS, root int, interval time.Duration, out chan<- MetricSample) *sampler {
	return &sampler{
		fs:       fs,
		root:     root,
		interval: interval,
		out:      out,
		seen:     map[int]bool{root: true},
		prevCPU:  make(map[int]float64),
	}
}

// run ticks until the root exits or stop closes, then closes out.
func (s *sampler) run(stop <-chan struct{}) {
	defer close(s.out)

	start := time.Now()
	lastTick := start
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if !proctree.AliveNonZombie(s.fs, s.root) {
			return
		}

		now := time.Now()
		sample := s.sampleTree(now.Sub(lastTick).Seconds())
		sample.Elapsed = now.Sub(start).Seconds()
		sample.Timestamp = now
		lastTick = now

		select {
		case s.out <- sample:
		case <-stop:
			return
		}
	}
}

// sampleTree aggregates one tick. A pid vanishing between enumeration
// and measurement contributes zero. A pid seen for the first time
// contributes zero CPU this tick; its delta starts next tick.
func (s *sampler) sampleTree(dt float64) MetricSample {
	snap := proctree.Take(s.fs, s.root)

	s.mu.Lock()
	for _, pid := range snap.All() {
		s.seen[pid] = true
	}
	s.mu.Unlock()

	var memBytes uint64
	var cpuDelta float64
	var threads int

	current := make(map[int]float64, len(snap.Children)+1)
	for _, pid := range snap.All() {
		u, ok := proctree.ReadUsage(s.fs, pid)
		if !ok {
			continue
		}
		memBytes += u.ResidentBytes
		threads += u.Threads
		current[pid] = u.CPUSeconds
		if prev, ok := s.prevCPU[pid]; ok && u.CPUSeconds >= prev {
			cpuDelta += u.CPUSeconds - prev
		}
	}
	s.prevCPU = current

	var cpuPct float64
	if dt > 0 {
		cpuPct = cpuDelta / dt * 100
	}

	return MetricSample{
		MemoryMB:   float64(memBytes) / (1024 * 1024),
		CPUPercent: cpuPct,
		Threads:    threads,
		Children:   len(snap.Children),
	}
}

// seenPIDs returns every pid observed during the session.
func (s *sampler) seenPIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pids := make([]int, 0, len(s.seen))
	for pid := range s.seen {
		pids = append(pids, pid)
	}
	return pids
}
