// Package server wires the application together: store backend, services,
// handlers, middleware and routes. It is the composition root — every
// dependency is constructed here and main.go stays minimal.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adswipe/child-panel/internal/auth"
	"github.com/adswipe/child-panel/internal/clientconfig"
	"github.com/adswipe/child-panel/internal/config"
	"github.com/adswipe/child-panel/internal/handler"
	"github.com/adswipe/child-panel/internal/kvstore"
	"github.com/adswipe/child-panel/internal/kvstore/firebase"
	"github.com/adswipe/child-panel/internal/kvstore/memory"
	sqlitestore "github.com/adswipe/child-panel/internal/kvstore/sqlite"
	"github.com/adswipe/child-panel/internal/middleware"
	"github.com/adswipe/child-panel/internal/service"
)

// Server owns the router and the store connection; the store is closed on
// graceful shutdown.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	store  kvstore.Store
}

// New assembles the full dependency chain: store → services → handlers →
// routes. Services receive the kvstore interface, handlers receive
// services; nothing skips a layer.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		s.closeStore()
		return nil, err
	}
	return s, nil
}

// newStore selects the backend from configuration. The firebase backend is
// the production one; sqlite runs the panel self-contained on one machine;
// memory is for tests and throwaway runs.
func newStore(cfg *config.Config) (kvstore.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFirebase:
		return firebase.New(cfg.FirebaseURL, cfg.FirebaseAuth)
	case config.BackendSQLite:
		return sqlitestore.New(cfg.DBPath)
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("server: unknown store backend %q", cfg.StoreBackend)
	}
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.RequestLogger(s.logger))

	tokens, err := auth.NewTokenService(s.cfg.JWTSecret)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService()

	accounts := service.NewAccountService(s.store, passwords, tokens, s.logger)
	links := service.NewLinkService(s.store, s.logger, s.cfg.LinkBaseURL)
	withdrawals := service.NewWithdrawalService(s.store, s.logger)

	authHandler := handler.NewAuthHandler(accounts, s.logger, s.cfg.SecureCookies)
	linkHandler := handler.NewLinkHandler(links, accounts, s.logger)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawals, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		// Everything below requires a valid session cookie.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/links", linkHandler.List)
			r.Post("/links", linkHandler.Create)
			r.Delete("/links/{index}", linkHandler.Delete)
			r.Get("/links/{index}/dashboard", linkHandler.Dashboard)

			r.Get("/withdrawals", withdrawalHandler.List)
			r.Post("/withdrawals/crypto", withdrawalHandler.SubmitCrypto)
			r.Post("/withdrawals/bank", withdrawalHandler.SubmitBank)

			r.Get("/summary", withdrawalHandler.Summary)
		})
	})

	// The client-config endpoint only exists when the encryption secret and
	// the config blob are both set; local sqlite/memory runs don't need it.
	if s.cfg.EncSecretKey != "" && s.cfg.ClientConfig != "" {
		encryptor, err := clientconfig.New(s.cfg.EncSecretKey, s.cfg.ClientConfig)
		if err != nil {
			return err
		}
		s.router.Get("/client-config", handler.NewClientConfigHandler(encryptor, s.logger).Get)
	}

	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return nil
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, drain in-flight requests, close the store.
func (s *Server) Start() error {
	defer s.closeStore()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("backend", s.cfg.StoreBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) closeStore() {
	if closer, ok := s.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error("closing store failed", "error", err)
		}
	}
}
