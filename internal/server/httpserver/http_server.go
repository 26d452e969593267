// Package httpserver wires the handler modules into the API and admin HTTP
// servers.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/applianced/internal/accounts"
	"git.home.luguber.info/inful/applianced/internal/config"
	"git.home.luguber.info/inful/applianced/internal/credit"
	"git.home.luguber.info/inful/applianced/internal/directory"
	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
	"git.home.luguber.info/inful/applianced/internal/jobs"
	"git.home.luguber.info/inful/applianced/internal/metrics"
	"git.home.luguber.info/inful/applianced/internal/server/handlers"
	smw "git.home.luguber.info/inful/applianced/internal/server/middleware"
	"git.home.luguber.info/inful/applianced/internal/specs"
)

// Options carries the domain components the handler modules serve.
type Options struct {
	Accounts  *accounts.Directory
	Credit    *credit.Ledger
	Directory *directory.Directory
	Specs     *specs.History
	Jobs      *jobs.Tracker

	// PromRegistry backs /metrics on the admin port. Nil falls back to the
	// default registry.
	PromRegistry *prom.Registry
}

// Server manages the API and admin HTTP endpoints.
type Server struct {
	apiServer    *http.Server
	adminServer  *http.Server
	cfg          *config.Config
	opts         Options
	errorAdapter *derrors.HTTPErrorAdapter

	// Handler modules
	accountHandlers   *handlers.AccountHandlers
	applianceHandlers *handlers.ApplianceHandlers
	jobHandlers       *handlers.JobHandlers

	// middleware chain
	mchain func(http.Handler) http.Handler
}

// New constructs a new HTTP server wiring instance.
func New(cfg *config.Config, opts Options) *Server {
	s := &Server{
		cfg:          cfg,
		opts:         opts,
		errorAdapter: derrors.NewHTTPErrorAdapter(slog.Default()),
	}

	// Initialize handler modules
	s.accountHandlers = handlers.NewAccountHandlers(opts.Accounts, opts.Credit, s.errorAdapter)
	s.applianceHandlers = handlers.NewApplianceHandlers(opts.Directory, opts.Specs, s.errorAdapter)
	s.jobHandlers = handlers.NewJobHandlers(opts.Directory, opts.Jobs, s.errorAdapter)

	// Initialize middleware chain
	s.mchain = smw.Chain(slog.Default(), s.errorAdapter)

	return s
}

// APIHandler returns the fully wired API handler, exposed for httptest use.
func (s *Server) APIHandler() http.Handler {
	mux := http.NewServeMux()
	s.accountHandlers.Register(mux)
	s.applianceHandlers.Register(mux)
	s.jobHandlers.Register(mux)
	return s.mchain(mux)
}

func (s *Server) adminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", metrics.HTTPHandler(s.opts.PromRegistry))
	return s.mchain(mux)
}

// Start binds and launches both HTTP servers.
func (s *Server) Start(ctx context.Context) error {
	// Pre-bind both required ports so we can fail fast and surface aggregate
	// errors instead of logging two independent 'address already in use'
	// lines after partial initialization.
	type preBind struct {
		name string
		port int
		ln   net.Listener
	}
	binds := []preBind{
		{name: "api", port: s.cfg.HTTP.APIPort},
		{name: "admin", port: s.cfg.HTTP.AdminPort},
	}
	var bindErrs []error
	lc := net.ListenConfig{}
	for i := range binds {
		addr := fmt.Sprintf(":%d", binds[i].port)
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			bindErrs = append(bindErrs, fmt.Errorf("%s port %d: %w", binds[i].name, binds[i].port, err))
			continue
		}
		binds[i].ln = ln
	}
	if len(bindErrs) > 0 {
		// Close any successful listeners before returning
		for _, b := range binds {
			if b.ln != nil {
				_ = b.ln.Close()
			}
		}
		return fmt.Errorf("http startup failed: %w", errors.Join(bindErrs...))
	}

	s.apiServer = &http.Server{
		Handler:           s.APIHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.adminServer = &http.Server{
		Handler:           s.adminHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.startServerWithListener("api", s.apiServer, binds[0].ln)
	s.startServerWithListener("admin", s.adminServer, binds[1].ln)

	slog.Info("HTTP servers started",
		slog.Int("api_port", s.cfg.HTTP.APIPort),
		slog.Int("admin_port", s.cfg.HTTP.AdminPort))
	return nil
}

// Stop gracefully shuts down both HTTP servers.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error

	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin server shutdown: %w", err))
		}
	}
	if s.apiServer != nil {
		if err := s.apiServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	slog.Info("HTTP servers stopped")
	return nil
}

// startServerWithListener launches an http.Server on a pre-bound listener.
// It standardizes goroutine startup and error logging across server types.
func (s *Server) startServerWithListener(kind string, srv *http.Server, ln net.Listener) {
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s server error", kind), "error", err)
		}
	}()
}
