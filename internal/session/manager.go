package session

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/procfs"

	"github.com/avolkov/procscope/internal/logging"
)

// Observer receives every event of every session the manager starts,
// in stream order per session. Used by the API layer to republish onto
// the bus; when set, the observer is the stream's single consumer and
// Events must not be called for those sessions.
type Observer func(sessionID string, ev Event)

// SessionInfo is a point-in-time summary of one session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Script    string    `json:"script"`
	State     string    `json:"state"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// Manager creates and tracks sessions.
type Manager struct {
	cfg      Config
	fs       procfs.FS
	logger   *slog.Logger
	observer Observer

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds a manager reading process state from /proc.
func NewManager(cfg Config) (*Manager, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		fs:       fs,
		logger:   logging.GetLogger("session"),
		sessions: make(map[string]*Session),
	}, nil
}

// SetObserver installs the event forwarder. Must be called before any
// StartSession.
func (m *Manager) SetObserver(obs Observer) { m.observer = obs }

// StartSession validates the spec, creates a session, and launches it
// asynchronously. The only synchronous failure is a blank entry-point;
// launch problems surface as a FinishedEvent with exit code -1.
func (m *Manager) StartSession(spec LaunchSpec) (string, error) {
	if strings.TrimSpace(spec.Script) == "" {
		return "", ErrEmptyScript
	}

	id := uuid.NewString()
	s := newSession(id, spec, m.cfg, m.fs, m.logger)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if m.observer != nil {
		go func() {
			for ev := range s.Events() {
				m.observer(id, ev)
			}
		}()
	}
	go s.run()

	m.logger.Info("session created", "id", id, "script", spec.Script)
	return id, nil
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Events returns the event stream for id. Single-consumer; not
// available when an observer is installed.
func (m *Manager) Events(id string) (<-chan Event, error) {
	s, ok := m.Get(id)
	if !ok {
		return nil, ErrUnknownSession
	}
	return s.Events(), nil
}

// Stop requests termination of id. Idempotent.
func (m *Manager) Stop(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrUnknownSession
	}
	s.Stop()
	return nil
}

// Remove stops id if needed and forgets it once finished.
func (m *Manager) Remove(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrUnknownSession
	}
	s.Stop()
	go func() {
		<-s.Done()
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
	}()
	return nil
}

// List returns summaries of all tracked sessions, newest first.
func (m *Manager) List() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, SessionInfo{
			ID:        s.ID,
			Script:    s.Spec.Script,
			State:     s.State().String(),
			PID:       s.PID(),
			StartedAt: s.StartedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.After(infos[j].StartedAt)
	})
	return infos
}

// StopAll requests termination of every live session and waits for
// them to finish, bounded by each session's own timeouts.
func (m *Manager) StopAll() {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	for _, s := range live {
		s.Stop()
	}
	for _, s := range live {
		<-s.Done()
	}
}
