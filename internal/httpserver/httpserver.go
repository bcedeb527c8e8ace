// Package httpserver serves the MCP server over streamable HTTP with bearer
// token authentication, either a static shared secret or locally issued
// OAuth tokens.
package httpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/auth"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gcptools/gcp-mcp/internal/config"
)

const (
	mcpPath       = "/mcp"
	healthPath    = "/healthz"
	tokenPath     = "/token"
	wellKnownPath = "/.well-known/oauth-authorization-server"

	shutdownTimeout = 10 * time.Second
)

// Server wraps the MCP server in an authenticated HTTP endpoint.
type Server struct {
	cfg  *config.Config
	log  *slog.Logger
	http *http.Server
}

// New builds the HTTP server. The configuration must carry a secret; in
// static mode it is the bearer token itself, in OAuth mode it signs and
// verifies issued tokens.
func New(cfg *config.Config, log *slog.Logger, mcpServer *mcp.Server) (*Server, error) {
	if err := cfg.ValidateHTTP(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, log: log}

	streamable := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	verifier := s.staticVerifier
	if cfg.UseOAuth {
		verifier = s.jwtVerifier
	}
	mcpHandler := auth.RequireBearerToken(verifier, nil)(streamable)

	mux := http.NewServeMux()
	mux.Handle(mcpPath, mcpHandler)
	mux.HandleFunc(healthPath, handleHealth)
	if cfg.UseOAuth {
		mux.HandleFunc(tokenPath, s.handleToken)
		mux.HandleFunc(wellKnownPath, s.handleAuthServerMetadata)
	}

	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}
	return s, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("listening", "addr", s.http.Addr, "oauth", s.cfg.UseOAuth)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("shutting down")
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

// staticVerifier accepts exactly the configured shared secret.
func (s *Server) staticVerifier(_ context.Context, token string, _ *http.Request) (*auth.TokenInfo, error) {
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.MCPSecret)) != 1 {
		return nil, auth.ErrInvalidToken
	}
	return &auth.TokenInfo{Expiration: time.Now().Add(time.Hour)}, nil
}
