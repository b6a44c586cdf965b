// Package server runs the clubsync gateway: it provisions the collection
// tables in Postgres, serves them over gRPC and exposes health and metrics
// over HTTP.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/logging"
	"github.com/dmitrijs2005/clubsync/internal/remote"
	"github.com/dmitrijs2005/clubsync/internal/remote/postgres"
	"github.com/dmitrijs2005/clubsync/internal/server/config"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/clubsync/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

type pinger interface {
	PingContext(ctx context.Context) error
}

// provisioner creates the storage behind a collection.
type provisioner interface {
	EnsureCollection(ctx context.Context, schema entity.Schema) error
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	registry *entity.Registry
	db       pinger
	backend  remote.Backend
	closeDB  func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, logging.ParseLevel(c.LogLevel))

	registry, err := entity.LoadRegistry(c.SchemaFile)
	if err != nil {
		return nil, err
	}

	db, err := postgres.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	backend := postgres.NewBackend(db, c.RequestTimeout)

	app := newApp(c, logger, registry, db, backend)
	app.closeDB = db.Close

	if err := app.provision(ctx, backend); err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(c *config.Config, l logging.Logger, r *entity.Registry, db pinger, b remote.Backend) *App {
	return &App{config: c, logger: l, registry: r, db: db, backend: b, closeDB: func() error { return nil }}
}

var _ pinger = (*sql.DB)(nil)

func (app *App) provision(ctx context.Context, p provisioner) error {
	for _, s := range app.registry.All() {
		if err := p.EnsureCollection(ctx, s); err != nil {
			return err
		}
		app.logger.Debug(ctx, "collection ready", "collection", s.Name, "table", s.Table)
	}
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Router serves /healthz and /metrics.
func (app *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", app.health).Methods(http.MethodGet)
	return r
}

func (app *App) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), app.config.RequestTimeout)
	defer cancel()

	if err := app.db.PingContext(ctx); err != nil {
		app.logger.Warn(ctx, "health check failed", "err", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (app *App) serveHTTP(ctx context.Context) error {
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: app.Router(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is cancelled or a signal arrives, then closes the
// database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.backend, app.registry, app.config.SecretKey)
		return s.Run(ctx)
	})
	if app.config.MetricsAddr != "" {
		g.Go(func() error { return app.serveHTTP(ctx) })
	}

	err := g.Wait()
	return errors.Join(err, app.closeDB())
}
