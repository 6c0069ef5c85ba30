// Package server assembles the HTTP API: routing, shared middleware, and
// lifecycle.
package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	adminhandler "merchant-docs/backend/internal/admin/handler"
	authhandler "merchant-docs/backend/internal/auth/handler"
	documenthandler "merchant-docs/backend/internal/document/handler"
	"merchant-docs/backend/internal/kyc"
	merchanthandler "merchant-docs/backend/internal/merchant/handler"
	"merchant-docs/backend/internal/security"
	"merchant-docs/backend/internal/server/httpjson"
	"merchant-docs/backend/internal/server/middleware"
)

// Deps holds the handlers mounted on the router. Nil handlers are skipped,
// which keeps tests and partial deployments simple.
type Deps struct {
	Tokens   *security.TokenProvider
	Auth     *authhandler.Handler
	Merchant *merchanthandler.Handler
	Document *documenthandler.Handler
	KYC      *kyc.Handler
	Admin    *adminhandler.Handler
	// DB is pinged by the readiness endpoint. May be nil.
	DB *sql.DB
}

// NewRouter builds the full route table wrapped in the shared middleware.
func NewRouter(deps Deps) http.Handler {
	mux := http.NewServeMux()
	requireAuth := middleware.RequireAuth(deps.Tokens)

	mux.HandleFunc("GET /healthz", healthz(deps.DB))

	if deps.Auth != nil {
		deps.Auth.Register(mux, requireAuth)
	}
	if deps.Merchant != nil {
		deps.Merchant.Register(mux, requireAuth)
	}
	if deps.Document != nil {
		deps.Document.Register(mux, requireAuth)
	}
	if deps.KYC != nil {
		deps.KYC.Register(mux, requireAuth)
	}
	if deps.Admin != nil {
		deps.Admin.Register(mux, requireAuth)
	}

	return middleware.ClientMetaMiddleware(mux)
}

func healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				httpjson.Error(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Server wraps http.Server with sane timeouts and graceful shutdown.
type Server struct {
	srv *http.Server
}

// New creates the server listening on addr.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

// Run serves until the listener closes. Returns nil on graceful shutdown.
func (s *Server) Run() error {
	log.Printf("server: listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
