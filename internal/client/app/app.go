// Package app is the client composition root: it turns a config.Config into
// a persisted store, a remote backend, an asset store and one manager per
// collection.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/clubsync/internal/client/config"
	"github.com/dmitrijs2005/clubsync/internal/entity"
	"github.com/dmitrijs2005/clubsync/internal/filex"
	"github.com/dmitrijs2005/clubsync/internal/logging"
	"github.com/dmitrijs2005/clubsync/internal/manager"
	"github.com/dmitrijs2005/clubsync/internal/notify"
	"github.com/dmitrijs2005/clubsync/internal/realtime"
	"github.com/dmitrijs2005/clubsync/internal/realtime/pgnotify"
	"github.com/dmitrijs2005/clubsync/internal/remote"
	"github.com/dmitrijs2005/clubsync/internal/remote/grpcremote"
	"github.com/dmitrijs2005/clubsync/internal/remote/memory"
	"github.com/dmitrijs2005/clubsync/internal/remote/postgres"
	"github.com/dmitrijs2005/clubsync/internal/remote/rest"
	"github.com/dmitrijs2005/clubsync/internal/remote/s3assets"
	"github.com/dmitrijs2005/clubsync/internal/server/auth"
	"github.com/dmitrijs2005/clubsync/internal/store"
	"github.com/spf13/afero"
)

const (
	clientSubject  = "clubsync-client"
	clientRole     = "client"
	clientTokenTTL = 12 * time.Hour
)

type App struct {
	cfg      *config.Config
	log      logging.Logger
	registry *entity.Registry
	store    store.Store
	backend  remote.Backend
	source   realtime.Source
	notifier *notify.Notifier
	managers map[string]*manager.Manager
	closers  []func() error
}

// New builds the client from cfg. passphrase, when non-empty, overrides
// cfg.CachePassphrase.
func New(ctx context.Context, cfg *config.Config, log logging.Logger, passphrase []byte) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Discard()
	}

	a := &App{cfg: cfg, log: log, notifier: notify.New(log)}

	if err := a.init(ctx, passphrase); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, passphrase []byte) error {
	reg, err := entity.LoadRegistry(a.cfg.SchemaFile)
	if err != nil {
		return err
	}
	a.registry = reg

	if len(passphrase) == 0 && a.cfg.CachePassphrase != "" {
		passphrase = []byte(a.cfg.CachePassphrase)
	}
	if err := a.openStore(ctx, passphrase); err != nil {
		return err
	}
	if err := a.openRemote(ctx); err != nil {
		return err
	}

	var assets *s3assets.Client
	if a.cfg.S3Enabled() {
		assets, err = s3assets.New(ctx, s3assets.Config{
			Region:       a.cfg.S3Region,
			AccessKey:    a.cfg.S3AccessKey,
			SecretKey:    a.cfg.S3SecretKey,
			Endpoint:     a.cfg.S3Endpoint,
			PublicURL:    a.cfg.S3PublicURL,
			UsePathStyle: a.cfg.S3UsePathStyle,
		})
		if err != nil {
			return err
		}
	}

	a.managers = make(map[string]*manager.Manager)
	for _, schema := range reg.All() {
		opts := []manager.Option{
			manager.WithTTL(a.cfg.CacheTTL),
			manager.WithCooldown(a.cfg.SyncCooldown),
			manager.WithLogger(a.log),
		}
		if assets != nil && schema.AssetBucket != "" {
			opts = append(opts, manager.WithAssets(assets.Bucket(schema.AssetBucket)))
		}
		if a.cfg.Realtime && a.source != nil {
			opts = append(opts, manager.WithRealtime(a.source))
		}
		a.managers[schema.Name] = manager.New(schema, a.backend.Collection(schema), a.store, a.notifier, opts...)
	}
	return nil
}

func (a *App) openStore(ctx context.Context, passphrase []byte) error {
	var st store.Store
	switch a.cfg.StoreDriver {
	case config.StoreMemory:
		st = store.NewMemoryStore(0)
	case config.StoreFile:
		dir, err := filex.EnsureDir(a.cfg.CacheDir)
		if err != nil {
			return err
		}
		fs, err := store.NewFileStore(afero.NewOsFs(), dir)
		if err != nil {
			return err
		}
		st = fs
	default:
		dir, err := filex.EnsureDir(a.cfg.CacheDir)
		if err != nil {
			return err
		}
		sq, err := store.OpenSQLite(ctx, filepath.Join(dir, "cache.db"))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, sq.Close)
		st = sq
	}

	if len(passphrase) > 0 {
		sealed, err := store.NewSealedStore(ctx, st, passphrase)
		if err != nil {
			return err
		}
		st = sealed
	}
	a.store = st
	return nil
}

func (a *App) openRemote(ctx context.Context) error {
	switch a.cfg.RemoteDriver {
	case config.RemoteMemory:
		mem := memory.New()
		a.backend = mem
		a.source = mem.Source()

	case config.RemotePostgres:
		db, err := postgres.Open(ctx, a.cfg.PostgresDSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		a.backend = postgres.NewBackend(db, a.cfg.RequestTimeout)
		a.source = pgnotify.New(a.cfg.PostgresDSN, a.registry, nil)

	case config.RemoteREST:
		a.backend = rest.New(a.cfg.RESTURL, a.cfg.RESTAPIKey, a.cfg.AccessToken, a.cfg.RequestTimeout)

	default:
		token, err := accessToken(a.cfg)
		if err != nil {
			return err
		}
		b, err := grpcremote.Dial(a.cfg.GRPCEndpoint, token, a.cfg.RequestTimeout)
		if err != nil {
			return fmt.Errorf("dial %s: %w", a.cfg.GRPCEndpoint, err)
		}
		a.closers = append(a.closers, b.Close)
		a.backend = b
	}
	return nil
}

// accessToken returns the configured token, or mints one when only the
// shared secret is known.
func accessToken(cfg *config.Config) (string, error) {
	if cfg.AccessToken != "" || cfg.TokenSecret == "" {
		return cfg.AccessToken, nil
	}
	return auth.GenerateToken(clientSubject, clientRole, []byte(cfg.TokenSecret), clientTokenTTL)
}

func (a *App) Registry() *entity.Registry { return a.registry }

func (a *App) Notifier() *notify.Notifier { return a.notifier }

// Manager returns the manager of the named collection.
func (a *App) Manager(name string) (*manager.Manager, error) {
	m, ok := a.managers[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	return m, nil
}

// Close stops every manager and releases the store and remote.
func (a *App) Close() error {
	var errs []error
	for _, m := range a.managers {
		errs = append(errs, m.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
