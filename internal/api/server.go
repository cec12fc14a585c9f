package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/avolkov/procscope/internal/events"
	"github.com/avolkov/procscope/internal/logging"
	"github.com/avolkov/procscope/internal/session"
	"github.com/avolkov/procscope/internal/version"
)

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Manager           *session.Manager
	Bus               *events.Bus
	PrometheusHandler http.Handler
}

// Server hosts the session control API and event streams.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	manager    *session.Manager
	bus        *events.Bus
	options    *Options
	logger     *slog.Logger
}

// withAuth marks an operation as requiring basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{{"basicAuth": {}}}
}

// NewServer creates the Huma v2 API server on Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("ProcScope API", version.Version)
	config.Info.Description = "Subprocess monitoring and control API"
	// Empty servers list keeps OpenAPI on relative paths
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:     api,
		mux:     mux,
		manager: opts.Manager,
		bus:     opts.Bus,
		options: opts,
		logger:  logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Metrics endpoint bypasses the Huma stack, no auth
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	server.registerSessionRoutes()
	server.registerSSERoutes()
	server.registerLogRoutes()

	return server
}

// API returns the Huma API instance, used by tests.
func (s *Server) API() huma.API { return s.api }

// Mux returns the underlying HTTP mux for additional setup.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// Start serves on addr until the listener fails or Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting ProcScope API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down and terminates every live session.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.manager != nil {
		s.manager.StopAll()
	}
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // no auth
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		return &HealthResponse{
			Body: HealthData{Status: "ok", Timestamp: time.Now()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*VersionResponse, error) {
		return &VersionResponse{Body: version.Get()}, nil
	})
}

// basicAuthMiddleware enforces HTTP basic auth on operations that
// declare a security requirement. SSE clients may pass base64
// credentials via the auth query parameter instead of a header.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		unauthorized := func(msg string, errs ...error) {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="ProcScope API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
		}

		var credentials string
		if authHeader := ctx.Header("Authorization"); authHeader != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(authHeader, prefix) {
				unauthorized("Invalid authentication type")
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
			if err != nil {
				unauthorized("Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		} else if queryAuth := ctx.Query("auth"); queryAuth != "" {
			decoded, err := base64.StdEncoding.DecodeString(queryAuth)
			if err != nil {
				unauthorized("Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		}

		if credentials == "" {
			unauthorized("Authentication required")
			return
		}

		parts := strings.SplitN(credentials, ":", 2)
		if len(parts) != 2 {
			unauthorized("Invalid credentials format")
			return
		}
		if parts[0] != username || parts[1] != password {
			unauthorized("Invalid credentials")
			return
		}
		next(ctx)
	}
}
