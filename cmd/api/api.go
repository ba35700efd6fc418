package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/farxc/household-migrator/internal/auth"
	"github.com/farxc/household-migrator/internal/logger"
	"github.com/farxc/household-migrator/internal/migration"
	"github.com/farxc/household-migrator/internal/store"
)

const component = "API"

type application struct {
	config   config
	store    *store.Storage
	runner   *migration.Runner
	verifier *auth.Verifier
	logger   *logger.Logger
	registry *prometheus.Registry

	// runMu serialises migrations; a Runner is not safe for concurrent use.
	runMu sync.Mutex
}

type config struct {
	addr        string
	db          dbConfig
	auth        authConfig
	sourceTable string
	logLevel    string
}

type dbConfig struct {
	driver       string
	addr         string
	maxOpenConns int
	maxIdleConns int
	maxIdleTime  string
	bootstrap    bool
}

type authConfig struct {
	secret        string
	adminSubjects []string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			// Set a timeout value on the request context (ctx), that will signal
			// through ctx.Done() that the request has timed out and further
			// processing should be stopped.
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/health", app.healthCheckHandler)
			r.With(app.authenticate).Get("/migrations/history", app.handleGetMigrationHistory)
		})

		// Migrations run detached from the request and may outlive the
		// timeout applied to the other routes.
		r.With(app.authenticate).Post("/migrations", app.handleRunMigration)
	})

	return r
}

func (app *application) run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Minute * 10,
		ReadTimeout:  time.Second * 40,
		IdleTimeout:  time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info(component, "Server started on %s", app.config.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info(component, "Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
