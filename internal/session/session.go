package session

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/procfs"

	"github.com/avolkov/procscope/internal/proctree"
	"github.com/avolkov/procscope/internal/pyenv"
)

// Session is one monitored run of a target program. It owns the child
// process, both output pumps, and the resource sampler, and merges
// their output into the single ordered stream returned by Events.
type Session struct {
	ID        string
	Spec      LaunchSpec
	StartedAt time.Time

	cfg    Config
	fs     procfs.FS
	logger *slog.Logger

	events  chan Event
	chunks  chan OutputChunk
	samples chan MetricSample
	logs    chan LogEvent

	state atomic.Int32

	pid        atomic.Int64
	waitErr    error
	procExited chan struct{}
	done       chan struct{}

	smp         *sampler
	samplerStop chan struct{}
	samplerOnce sync.Once

	stopOnce sync.Once

	mu         sync.Mutex
	forcedKill bool
	killedPIDs []int

	tail *tailRing

	// overridable for termination tests
	signalRoot func(pid int, sig syscall.Signal) error
	killTree   func(pid int) []int
}

func newSession(id string, spec LaunchSpec, cfg Config, fs procfs.FS, logger *slog.Logger) *Session {
	s := &Session{
		ID:          id,
		Spec:        spec,
		StartedAt:   time.Now(),
		cfg:         cfg,
		fs:          fs,
		logger:      logger,
		events:      make(chan Event, cfg.EventBuffer),
		chunks:      make(chan OutputChunk, 256),
		samples:     make(chan MetricSample, 16),
		logs:        make(chan LogEvent, 32),
		procExited:  make(chan struct{}),
		done:        make(chan struct{}),
		samplerStop: make(chan struct{}),
		tail:        newTailRing(cfg.StderrTailLines),
		signalRoot:  proctree.SignalRoot,
	}
	s.killTree = func(pid int) []int { return proctree.KillTree(fs, pid) }
	return s
}

// Events returns the session's ordered event stream. Single consumer;
// the channel closes after the FinishedEvent.
func (s *Session) Events() <-chan Event { return s.events }

// Done closes once the FinishedEvent has been emitted.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// PID returns the root process id, or 0 before launch succeeds.
func (s *Session) PID() int { return int(s.pid.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// run drives the whole session lifecycle and returns after Finished
// has been emitted. The manager calls it on its own goroutine.
func (s *Session) run() {
	s.setState(StateLaunching)

	env := s.buildEnv()

	lp, err := launch(s.Spec, env)
	if err != nil {
		s.logger.Error("session launch failed", "id", s.ID, "error", err)
		s.drainLogs() // environment warnings queued before the failure
		s.events <- LogEvent{Severity: slog.LevelError, Message: err.Error(), Timestamp: time.Now()}
		s.events <- FinishedEvent{ExitCode: -1, Timestamp: time.Now()}
		close(s.events)
		s.setState(StateFinished)
		close(s.done)
		return
	}
	pid := lp.cmd.Process.Pid
	s.pid.Store(int64(pid))
	s.setState(StateRunning)
	s.logger.Info("session started", "id", s.ID, "pid", pid, "script", s.Spec.Script)
	s.events <- StartedEvent{PID: pid, Script: s.Spec.Script, Timestamp: time.Now()}

	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() {
		defer pumps.Done()
		runPump(lp.stdout, "stdout", s.chunks, s.emitLog)
	}()
	go func() {
		defer pumps.Done()
		runPump(lp.stderr, "stderr", s.chunks, s.emitLog)
	}()
	go func() {
		pumps.Wait()
		close(s.chunks)
	}()

	s.smp = newSampler(s.fs, pid, s.cfg.SampleInterval, s.samples)
	go s.smp.run(s.samplerStop)

	go func() {
		s.waitErr = lp.cmd.Wait()
		close(s.procExited)
	}()

	s.mergeLoop(lp)
}

// buildEnv constructs the child environment. An unreadable project
// root degrades to the inherited search path with a warning, never a
// launch failure.
func (s *Session) buildEnv() []string {
	root := s.Spec.WorkDir
	if root == "" && s.Spec.Script != "" {
		if abs, err := filepath.Abs(s.Spec.Script); err == nil {
			root = filepath.Dir(abs)
		}
	}
	if root != "" {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			s.emitLog(slog.LevelWarn, "project root "+root+" not readable, search path not extended")
		}
	}
	return pyenv.Build(pyenv.Options{
		Root:       root,
		ExtraPaths: s.Spec.ExtraPaths,
		ForceUTF8:  s.Spec.ForceUTF8,
	})
}

// emitLog queues a session diagnostic without ever blocking a pump or
// the sampler. Overflow drops the message; child output is never
// dropped this way.
func (s *Session) emitLog(level slog.Level, msg string) {
	ev := LogEvent{Severity: level, Message: msg, Timestamp: time.Now()}
	select {
	case s.logs <- ev:
	default:
		s.logger.Warn("session log queue full, dropping", "id", s.ID, "message", msg)
	}
}

// mergeLoop multiplexes chunks, samples, and diagnostics into the
// caller-facing stream until the child has exited and both pumps have
// drained, then emits the FinishedEvent.
func (s *Session) mergeLoop(lp *launched) {
	chunks := s.chunks
	samples := s.samples
	procExited := s.procExited
	var drainTimer *time.Timer

	for chunks != nil || samples != nil || procExited != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if c.Channel == "stderr" {
				s.tail.Add(c.Text)
			}
			s.events <- OutputEvent{Chunk: c}
		case m, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			s.events <- MetricsEvent{Sample: m}
		case l := <-s.logs:
			s.events <- l
		case <-procExited:
			procExited = nil
			s.setState(StateStopping)
			s.stopSampler()
			drainTimer = time.AfterFunc(s.cfg.DrainTimeout, func() {
				lp.stdout.Close()
				lp.stderr.Close()
			})
		}
	}
	if drainTimer != nil {
		drainTimer.Stop()
	}
	lp.stdout.Close()
	lp.stderr.Close()

	// flush any diagnostics queued during shutdown
	s.drainLogs()
	s.finish()
}

// drainLogs forwards every queued diagnostic without blocking.
func (s *Session) drainLogs() {
	for {
		select {
		case l := <-s.logs:
			s.events <- l
		default:
			return
		}
	}
}

func (s *Session) finish() {
	zombies := s.scanZombies()

	exitCode := exitCodeFromError(s.waitErr)
	s.mu.Lock()
	if s.forcedKill {
		exitCode = 137
	}
	s.mu.Unlock()

	fin := FinishedEvent{
		ExitCode:   exitCode,
		ZombiePIDs: zombies,
		Timestamp:  time.Now(),
	}
	if exitCode != 0 {
		fin.StderrTail = s.tail.Lines()
	}
	if len(zombies) > 0 {
		s.logger.Warn("session leaked processes", "id", s.ID, "pids", zombies)
	}
	s.logger.Info("session finished", "id", s.ID, "exit_code", exitCode)

	s.events <- fin
	close(s.events)
	s.setState(StateFinished)
	close(s.done)
}

// scanZombies waits out the grace delay, then re-checks every pid that
// was part of the tree at any point. Survivors are reported, not
// re-killed, to avoid racing kernel cleanup.
func (s *Session) scanZombies() []int {
	time.Sleep(s.cfg.ZombieGrace)

	tracked := make(map[int]bool)
	for _, pid := range s.smp.seenPIDs() {
		tracked[pid] = true
	}
	s.mu.Lock()
	for _, pid := range s.killedPIDs {
		tracked[pid] = true
	}
	s.mu.Unlock()

	root := s.PID()
	var zombies []int
	for pid := range tracked {
		// The root is already reaped by Wait; checking it would only
		// ever hit an unrelated recycled pid.
		if pid == root {
			continue
		}
		if proctree.AliveNonZombie(s.fs, pid) {
			zombies = append(zombies, pid)
		}
	}
	sort.Ints(zombies)
	return zombies
}

func (s *Session) stopSampler() {
	s.samplerOnce.Do(func() { close(s.samplerStop) })
}

// Stop requests graceful-then-forceful termination and returns
// immediately. Repeated calls, or calls after Finished, are no-ops.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		if s.State() == StateFinished {
			return
		}
		go s.terminate()
	})
}

func (s *Session) terminate() {
	// a stop can race the launch; wait for the pid to exist or for the
	// session to finish on its own
	var pid int
	for {
		pid = s.PID()
		if pid != 0 {
			break
		}
		select {
		case <-s.done:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
	s.logger.Info("stopping session", "id", s.ID, "pid", pid)

	if err := s.signalRoot(pid, syscall.SIGINT); err != nil {
		s.logger.Warn("SIGINT failed", "id", s.ID, "pid", pid, "error", err)
	}

	select {
	case <-s.procExited:
		return
	case <-time.After(s.cfg.GracefulTimeout):
	}

	s.logger.Warn("graceful stop timed out, killing tree", "id", s.ID, "pid", pid)

	// The tree may have exited in the instant after the timeout fired.
	// Only an actual kill marks the session as force-terminated.
	killed := s.killTree(pid)
	if len(killed) == 0 {
		return
	}
	s.mu.Lock()
	s.forcedKill = true
	s.killedPIDs = append(s.killedPIDs, killed...)
	s.mu.Unlock()
}

// tailRing keeps the last N stderr lines for the crash excerpt.
// Touched only by the merge loop, so it needs no locking.
type tailRing struct {
	lines []string
	max   int
}

func newTailRing(max int) *tailRing {
	if max <= 0 {
		max = 1
	}
	return &tailRing{max: max}
}

func (r *tailRing) Add(line string) {
	r.lines = append(r.lines, line)
	if len(r.lines) > r.max {
		r.lines = r.lines[len(r.lines)-r.max:]
	}
}

func (r *tailRing) Lines() []string {
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}
