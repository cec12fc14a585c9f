package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig holds the cross-origin policy for the HTTP surface.
type CORSConfig struct {
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

// DefaultCORSConfig returns permissive CORS config for internal tools.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		MaxAge:       86400,
	}
}

// corsHeaders is the config flattened into ready-to-send header values.
type corsHeaders struct {
	origin  string
	methods string
	headers string
	maxAge  string
}

func (c CORSConfig) compile() corsHeaders {
	return corsHeaders{
		origin:  c.AllowOrigin,
		methods: strings.Join(c.AllowMethods, ", "),
		headers: strings.Join(c.AllowHeaders, ", "),
		maxAge:  strconv.Itoa(c.MaxAge),
	}
}

func (h corsHeaders) apply(set func(name, value string)) {
	set("Access-Control-Allow-Origin", h.origin)
	set("Access-Control-Allow-Methods", h.methods)
	set("Access-Control-Allow-Headers", h.headers)
	set("Access-Control-Max-Age", h.maxAge)
}

// NewCORSMiddleware creates CORS middleware with the given configuration.
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	hdrs := config.compile()

	return func(ctx huma.Context, next func(huma.Context)) {
		hdrs.apply(ctx.SetHeader)

		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}

// AddCORSHandler adds a preflight handler to the mux, since Huma
// middleware does not see OPTIONS requests before routing.
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	hdrs := config.compile()

	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		hdrs.apply(w.Header().Set)
		w.WriteHeader(http.StatusNoContent)
	})
}
