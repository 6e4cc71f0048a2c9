package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/surl/internal/adapter/cache/redis"
	delivery "github.com/vadimbarashkov/surl/internal/adapter/delivery/http"
	"github.com/vadimbarashkov/surl/internal/adapter/repository/bolt"
	"github.com/vadimbarashkov/surl/internal/adapter/repository/memory"
	pgrepo "github.com/vadimbarashkov/surl/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/surl/internal/allocator"
	"github.com/vadimbarashkov/surl/internal/config"
	"github.com/vadimbarashkov/surl/internal/kv"
	"github.com/vadimbarashkov/surl/internal/usecase"
	"github.com/vadimbarashkov/surl/migrations"
	"github.com/vadimbarashkov/surl/pkg/postgres"
	redispkg "github.com/vadimbarashkov/surl/pkg/redis"
	"golang.org/x/sync/errgroup"
)

// writerLockKey is the postgres advisory lock held by the instance that issues short codes.
const writerLockKey int64 = 0x7375726c

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: failed to open store: %w", op, err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close store", slog.Any("err", err))
		}
	}()

	alloc, err := allocator.Recover(ctx, store)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("store recovered",
		slog.String("driver", cfg.Storage.Driver),
		slog.Uint64("next", alloc.Next()),
	)

	var links kv.Reader = store

	if cfg.Redis.Enabled() {
		client, err := redispkg.New(
			ctx,
			cfg.Redis.Addr,
			redispkg.WithPassword(cfg.Redis.Password),
			redispkg.WithDB(cfg.Redis.DB),
			redispkg.WithPoolSize(cfg.Redis.PoolSize),
		)
		if err != nil {
			return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}
		defer client.Close()

		links = newLinkCache(client, store, cfg, logger.Logger)
	}

	urlUseCase := usecase.NewURLUseCase(alloc, links)
	router := delivery.NewRouter(logger, urlUseCase, cfg.Website)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr))

		var err error

		switch {
		case cfg.HTTPServer.CertFile != "" && cfg.HTTPServer.KeyFile != "":
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

// NewLogger builds the request and application logger: JSON in prod, concise
// text elsewhere.
func NewLogger(cfg *config.Config) (*httplog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	return httplog.NewLogger("surl", httplog.Options{
		JSON:     cfg.Env == config.EnvProd,
		LogLevel: level,
		Concise:  cfg.Env != config.EnvProd,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	}), nil
}

// openStore returns the configured store together with its release function.
func openStore(ctx context.Context, cfg *config.Config) (kv.Store, func() error, error) {
	switch cfg.Storage.Driver {
	case config.DriverBolt:
		store, err := bolt.Open(
			cfg.Storage.Path,
			bolt.WithOpenTimeout(cfg.Storage.OpenTimeout),
			bolt.WithInitialMmapSize(cfg.Storage.InitialMmapSize),
			bolt.WithNoFreelistSync(cfg.Storage.NoFreelistSync),
		)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.DriverPostgres:
		pg := cfg.Storage.Postgres

		db, err := postgres.New(
			ctx,
			pg.DSN(),
			postgres.WithConnMaxIdleTime(pg.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(pg.ConnMaxLifetime),
			postgres.WithMaxIdleConns(pg.MaxIdleConns),
			postgres.WithMaxOpenConns(pg.MaxOpenConns),
		)
		if err != nil {
			return nil, nil, err
		}

		if err := postgres.RunMigrations(migrations.FS, pg.DSN()); err != nil {
			db.Close()
			return nil, nil, err
		}

		// The allocator counter lives in process memory, so only one
		// instance may issue short codes against a database.
		unlock, err := postgres.AcquireLock(ctx, db, writerLockKey)
		if err != nil {
			db.Close()
			return nil, nil, err
		}

		closeDB := func() error {
			return errors.Join(unlock(), db.Close())
		}
		return pgrepo.NewKVRepository(db), closeDB, nil

	case config.DriverMemory:
		return memory.New(), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newLinkCache(client *goredis.Client, store kv.Reader, cfg *config.Config, logger *slog.Logger) *redis.Cache {
	return redis.New(
		client,
		store,
		redis.WithTTL(cfg.Redis.TTL),
		redis.WithLogger(logger),
	)
}
