package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins. "*" allows any
	// origin without credentials.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values. No cross-origin
// requests are allowed.
func DefaultConfig() Config {
	return Config{}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /renders", h.CreateRender)
	mux.HandleFunc("GET /renders", h.ListRenders)
	mux.HandleFunc("GET /renders/{id}", h.GetRender)
	mux.HandleFunc("DELETE /renders/{id}", h.DeleteRender)

	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
