package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/avolkov/procscope/internal/session"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/api/sessions",
		Summary:       "Launch Session",
		Description:   "Launch a target program under monitoring. Launch failures surface on the event stream, not here.",
		Tags:          []string{"sessions"},
		Security:      withAuth(),
		DefaultStatus: http.StatusCreated,
		Errors:        []int{401, 422},
	}, func(ctx context.Context, input *StartSessionInput) (*SessionResponse, error) {
		id, err := s.manager.StartSession(input.toSpec())
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid launch spec", err)
		}
		sess, _ := s.manager.Get(id)
		return &SessionResponse{Body: session.SessionInfo{
			ID:        id,
			Script:    sess.Spec.Script,
			State:     sess.State().String(),
			PID:       sess.PID(),
			StartedAt: sess.StartedAt,
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "List Sessions",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*SessionListResponse, error) {
		resp := &SessionListResponse{}
		resp.Body.Sessions = s.manager.List()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}",
		Summary:     "Get Session",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *SessionIDInput) (*SessionResponse, error) {
		sess, ok := s.manager.Get(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("session not found")
		}
		return &SessionResponse{Body: session.SessionInfo{
			ID:        sess.ID,
			Script:    sess.Spec.Script,
			State:     sess.State().String(),
			PID:       sess.PID(),
			StartedAt: sess.StartedAt,
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-session",
		Method:      http.MethodPost,
		Path:        "/api/sessions/{id}/stop",
		Summary:     "Stop Session",
		Description: "Request graceful-then-forceful termination. Completion is observed via the session-finished event.",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *SessionIDInput) (*StatusResponse, error) {
		if err := s.manager.Stop(input.ID); err != nil {
			if errors.Is(err, session.ErrUnknownSession) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, err
		}
		resp := &StatusResponse{}
		resp.Body.Status = "stopping"
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-session",
		Method:      http.MethodDelete,
		Path:        "/api/sessions/{id}",
		Summary:     "Delete Session",
		Description: "Stop the session if still running and forget it once finished.",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *SessionIDInput) (*StatusResponse, error) {
		if err := s.manager.Remove(input.ID); err != nil {
			if errors.Is(err, session.ErrUnknownSession) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, err
		}
		resp := &StatusResponse{}
		resp.Body.Status = "removed"
		return resp, nil
	})
}
