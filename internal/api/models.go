package api

import (
	"time"

	"github.com/avolkov/procscope/internal/session"
	"github.com/avolkov/procscope/internal/version"
)

// HealthResponse is the health check output.
type HealthResponse struct {
	Body HealthData
}

type HealthData struct {
	Status    string    `json:"status" example:"ok" doc:"Health status"`
	Timestamp time.Time `json:"timestamp" doc:"Server time"`
}

// VersionResponse exposes build information.
type VersionResponse struct {
	Body version.Info
}

// StartSessionInput is the request body for launching a session.
type StartSessionInput struct {
	Body struct {
		Script     string   `json:"script" minLength:"1" doc:"Entry-point path of the target program"`
		Args       []string `json:"args,omitempty" doc:"Arguments passed to the target"`
		WorkDir    string   `json:"work_dir,omitempty" doc:"Working directory, defaults to the script's directory"`
		ExtraPaths []string `json:"extra_paths,omitempty" doc:"Extra search-path directories"`
		Python     string   `json:"python,omitempty" doc:"Interpreter override"`
		ForceUTF8  bool     `json:"force_utf8,omitempty" doc:"Force UTF-8 I/O on the child"`
	}
}

func (i *StartSessionInput) toSpec() session.LaunchSpec {
	return session.LaunchSpec{
		Script:     i.Body.Script,
		Args:       i.Body.Args,
		WorkDir:    i.Body.WorkDir,
		ExtraPaths: i.Body.ExtraPaths,
		Python:     i.Body.Python,
		ForceUTF8:  i.Body.ForceUTF8,
	}
}

// SessionResponse describes one session.
type SessionResponse struct {
	Body session.SessionInfo
}

// SessionListResponse lists all tracked sessions.
type SessionListResponse struct {
	Body struct {
		Sessions []session.SessionInfo `json:"sessions"`
	}
}

// SessionIDInput captures the path parameter shared by per-session
// operations.
type SessionIDInput struct {
	ID string `path:"id" doc:"Session identifier"`
}

// StatusResponse is a minimal acknowledgement body.
type StatusResponse struct {
	Body struct {
		Status string `json:"status" example:"ok"`
	}
}
