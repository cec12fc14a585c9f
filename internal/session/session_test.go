package session

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/procfs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleInterval = 50 * time.Millisecond
	cfg.GracefulTimeout = 300 * time.Millisecond
	cfg.ZombieGrace = 100 * time.Millisecond
	cfg.DrainTimeout = 200 * time.Millisecond
	return cfg
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.sh")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// shSession builds a session that runs body under /bin/sh instead of a
// python interpreter.
func shSession(t *testing.T, body string, cfg Config) *Session {
	t.Helper()
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		t.Skipf("no /proc available: %v", err)
	}
	spec := LaunchSpec{Script: writeScript(t, body), Python: "/bin/sh"}
	return newSession("test-session", spec, cfg, fs, testLogger())
}

// collect consumes the full event stream after starting the session.
func collect(t *testing.T, s *Session, timeout time.Duration) []Event {
	t.Helper()
	go s.run()

	done := make(chan []Event, 1)
	go func() {
		var evs []Event
		for ev := range s.Events() {
			evs = append(evs, ev)
		}
		done <- evs
	}()

	select {
	case evs := <-done:
		return evs
	case <-time.After(timeout):
		t.Fatal("timeout waiting for session to finish")
		return nil
	}
}

func finished(t *testing.T, evs []Event) FinishedEvent {
	t.Helper()
	if len(evs) == 0 {
		t.Fatal("no events")
	}
	fin, ok := evs[len(evs)-1].(FinishedEvent)
	if !ok {
		t.Fatalf("last event is %T, want FinishedEvent", evs[len(evs)-1])
	}
	for i, ev := range evs[:len(evs)-1] {
		if _, dup := ev.(FinishedEvent); dup {
			t.Fatalf("FinishedEvent at position %d is not last", i)
		}
	}
	return fin
}

func outputs(evs []Event, channel string) []OutputChunk {
	var chunks []OutputChunk
	for _, ev := range evs {
		if o, ok := ev.(OutputEvent); ok && o.Chunk.Channel == channel {
			chunks = append(chunks, o.Chunk)
		}
	}
	return chunks
}

func TestCleanExitCapturesOutput(t *testing.T) {
	s := shSession(t, "echo done\nexit 0\n", testConfig())
	evs := collect(t, s, 10*time.Second)

	if _, ok := evs[0].(StartedEvent); !ok {
		t.Errorf("first event is %T, want StartedEvent", evs[0])
	}

	fin := finished(t, evs)
	if fin.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", fin.ExitCode)
	}
	if len(fin.ZombiePIDs) != 0 {
		t.Errorf("ZombiePIDs = %v, want none", fin.ZombiePIDs)
	}

	chunks := outputs(evs, "stdout")
	if len(chunks) != 1 || chunks[0].Text != "done" {
		t.Errorf("stdout chunks = %+v, want single \"done\"", chunks)
	}
	if s.State() != StateFinished {
		t.Errorf("state = %s, want finished", s.State())
	}
}

func TestSequenceNumbersGapless(t *testing.T) {
	body := "i=0\nwhile [ $i -lt 200 ]; do\n  echo out $i\n  echo err $i >&2\n  i=$((i+1))\ndone\n"
	s := shSession(t, body, testConfig())
	evs := collect(t, s, 15*time.Second)
	finished(t, evs)

	for _, channel := range []string{"stdout", "stderr"} {
		chunks := outputs(evs, channel)
		if len(chunks) != 200 {
			t.Fatalf("%s: got %d chunks, want 200", channel, len(chunks))
		}
		for i, c := range chunks {
			if c.Seq != uint64(i+1) {
				t.Fatalf("%s: chunk %d has seq %d, want %d", channel, i, c.Seq, i+1)
			}
		}
	}
}

func TestNonZeroExitCarriesStderrTail(t *testing.T) {
	s := shSession(t, "echo oops >&2\necho details >&2\nexit 42\n", testConfig())
	evs := collect(t, s, 10*time.Second)

	fin := finished(t, evs)
	if fin.ExitCode != 42 {
		t.Errorf("ExitCode = %d, want 42", fin.ExitCode)
	}
	if len(fin.StderrTail) != 2 || fin.StderrTail[0] != "oops" || fin.StderrTail[1] != "details" {
		t.Errorf("StderrTail = %v", fin.StderrTail)
	}
}

func TestMetricsEmitted(t *testing.T) {
	s := shSession(t, "exec sleep 1\n", testConfig())
	evs := collect(t, s, 10*time.Second)
	finished(t, evs)

	var samples []MetricSample
	for _, ev := range evs {
		if m, ok := ev.(MetricsEvent); ok {
			samples = append(samples, m.Sample)
		}
	}
	if len(samples) < 3 {
		t.Fatalf("got %d samples, want several over a 1s run", len(samples))
	}
	prev := -1.0
	for i, m := range samples {
		if m.MemoryMB <= 0 {
			t.Errorf("sample %d: MemoryMB = %v", i, m.MemoryMB)
		}
		if m.Threads < 1 {
			t.Errorf("sample %d: Threads = %d", i, m.Threads)
		}
		if m.Elapsed <= prev {
			t.Errorf("sample %d: Elapsed %v not increasing past %v", i, m.Elapsed, prev)
		}
		prev = m.Elapsed
	}
}

func TestStopGraceful(t *testing.T) {
	s := shSession(t, "exec sleep 30\n", testConfig())
	go s.run()

	var evs []Event
	deadline := time.After(10 * time.Second)
	stopped := false
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				fin := finished(t, evs)
				if fin.ExitCode != 130 {
					t.Errorf("ExitCode = %d, want 130 (SIGINT)", fin.ExitCode)
				}
				if len(fin.ZombiePIDs) != 0 {
					t.Errorf("ZombiePIDs = %v, want none", fin.ZombiePIDs)
				}
				return
			}
			evs = append(evs, ev)
			if _, ok := ev.(StartedEvent); ok && !stopped {
				stopped = true
				s.Stop()
				s.Stop() // idempotent
			}
		case <-deadline:
			t.Fatal("timeout")
		}
	}
}

func TestStopForcedKillsTree(t *testing.T) {
	// Root ignores SIGINT, so the grace period elapses and the whole
	// tree is killed.
	body := "trap '' INT\nsleep 30 &\nsleep 30\n"
	s := shSession(t, body, testConfig())
	go s.run()

	var evs []Event
	deadline := time.After(15 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				fin := finished(t, evs)
				if fin.ExitCode != 137 {
					t.Errorf("ExitCode = %d, want 137", fin.ExitCode)
				}
				if len(fin.ZombiePIDs) != 0 {
					t.Errorf("ZombiePIDs = %v, want none after tree kill", fin.ZombiePIDs)
				}
				return
			}
			evs = append(evs, ev)
			if _, ok := ev.(StartedEvent); ok {
				// let the sampler observe the children first
				time.AfterFunc(150*time.Millisecond, s.Stop)
			}
		case <-deadline:
			t.Fatal("timeout")
		}
	}
}

func TestSuppressedKillReportsZombie(t *testing.T) {
	// Background child outlives the root. The kill is suppressed for
	// children, so the scan must report the survivor.
	body := "trap '' INT\nsleep 30 &\nsleep 30\n"
	s := shSession(t, body, testConfig())
	s.killTree = func(pid int) []int {
		syscall.Kill(pid, syscall.SIGKILL)
		return []int{pid}
	}
	go s.run()

	var evs []Event
	deadline := time.After(15 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				fin := finished(t, evs)
				if fin.ExitCode != 137 {
					t.Errorf("ExitCode = %d, want 137", fin.ExitCode)
				}
				if len(fin.ZombiePIDs) == 0 {
					t.Error("ZombiePIDs empty, want the surviving sleepers")
				}
				for _, pid := range fin.ZombiePIDs {
					syscall.Kill(pid, syscall.SIGKILL)
				}
				return
			}
			evs = append(evs, ev)
			if _, ok := ev.(StartedEvent); ok {
				time.AfterFunc(150*time.Millisecond, s.Stop)
			}
		case <-deadline:
			t.Fatal("timeout")
		}
	}
}

func TestLaunchFailureSyntheticExit(t *testing.T) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		t.Skipf("no /proc available: %v", err)
	}
	spec := LaunchSpec{Script: "/does/not/exist.py", Python: "/bin/sh"}
	s := newSession("test-session", spec, testConfig(), fs, testLogger())

	evs := collect(t, s, 5*time.Second)

	fin := finished(t, evs)
	if fin.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", fin.ExitCode)
	}
	for _, ev := range evs {
		switch ev.(type) {
		case StartedEvent:
			t.Error("StartedEvent emitted for failed launch")
		case MetricsEvent:
			t.Error("MetricsEvent emitted for failed launch")
		}
	}
}

func TestNaturalExitAfterGraceTimeoutKeepsRealCode(t *testing.T) {
	// The grace timeout fires, but by the time the kill runs the tree
	// is already gone. The real exit code must survive, not 137.
	body := "trap '' INT\nsleep 1\nexit 7\n"
	s := shSession(t, body, testConfig())
	s.killTree = func(pid int) []int { return nil }
	go s.run()

	var evs []Event
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				fin := finished(t, evs)
				if fin.ExitCode != 7 {
					t.Errorf("ExitCode = %d, want 7", fin.ExitCode)
				}
				return
			}
			evs = append(evs, ev)
			if _, ok := ev.(StartedEvent); ok {
				s.Stop()
			}
		case <-deadline:
			t.Fatal("timeout")
		}
	}
}

func TestLaunchFailureFlushesEnvWarning(t *testing.T) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		t.Skipf("no /proc available: %v", err)
	}
	// The script's directory does not exist either, so the environment
	// builder queues a warning before the launch itself fails.
	spec := LaunchSpec{Script: "/does/not/exist/prog.py", Python: "/bin/sh"}
	s := newSession("test-session", spec, testConfig(), fs, testLogger())

	evs := collect(t, s, 5*time.Second)
	fin := finished(t, evs)
	if fin.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", fin.ExitCode)
	}

	warned := false
	for _, ev := range evs {
		if l, ok := ev.(LogEvent); ok && l.Severity == slog.LevelWarn {
			warned = true
		}
	}
	if !warned {
		t.Error("environment warning missing from the stream")
	}
}

func TestMalformedBytesReplaced(t *testing.T) {
	body := "printf 'bad \\377 byte\\n' >&2\necho after >&2\n"
	s := shSession(t, body, testConfig())
	evs := collect(t, s, 10*time.Second)
	finished(t, evs)

	chunks := outputs(evs, "stderr")
	if len(chunks) != 2 {
		t.Fatalf("stderr chunks = %+v, want 2", chunks)
	}
	if chunks[0].Text != "bad � byte" {
		t.Errorf("chunk text = %q, want replacement character", chunks[0].Text)
	}
	if chunks[1].Text != "after" || chunks[1].Seq != 2 {
		t.Errorf("pump stopped early: %+v", chunks[1])
	}
}

func TestTailRing(t *testing.T) {
	r := newTailRing(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		r.Add(l)
	}
	got := r.Lines()
	want := []string{"c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestExitCodeFromError(t *testing.T) {
	if got := exitCodeFromError(nil); got != 0 {
		t.Errorf("nil error: %d", got)
	}
	if got := exitCodeFromError(io.ErrUnexpectedEOF); got != 1 {
		t.Errorf("non-exit error: %d", got)
	}
}
