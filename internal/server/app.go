// Package server wires the auth service together: configuration, logging,
// tracing, storage, key material, the hashing pool and the gRPC and HTTP
// transports, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/hashing"
	"github.com/dmitrijs2005/gophauth/internal/server/keys"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/tracing"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
	hs "github.com/dmitrijs2005/gophauth/internal/server/http"
)

const (
	serviceName     = "gophauth"
	shutdownTimeout = 10 * time.Second
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	metrics     *metrics.Metrics
	userService *services.UserService

	// closers run in reverse order on shutdown
	closers []func(context.Context) error
}

// NewApp builds every component from c. On error, whatever was already
// opened is closed again.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(c.LogFormat, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			app.close(context.Background())
		}
	}()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Endpoint:    c.OTLPEndpoint,
		ServiceName: serviceName,
		SampleRatio: c.TraceSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}
	app.closers = append(app.closers, shutdownTracing)

	rm, err := OpenRepositoryManager(ctx, c)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func(context.Context) error { return rm.Close() })

	if c.Store == config.StorePostgres && c.MigrateOnStart {
		if err := rm.RunMigrations(ctx); err != nil {
			return nil, err
		}
		logger.Info(ctx, "Migrations applied")
	}

	ks, err := keys.Load(ctx, c.KeyOptions())
	if err != nil {
		return nil, fmt.Errorf("keys init error: %w", err)
	}
	issuer, err := auth.NewIssuer(ks, c.AccessTokenValidityDuration, auth.WithIssuer(c.Issuer))
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Signing keys loaded", "algorithm", ks.Algorithm())

	argon, err := cryptox.NewArgon2Hasher(c.Argon2Params())
	if err != nil {
		return nil, err
	}
	policy, err := hashing.ParsePolicy(c.HashPolicy)
	if err != nil {
		return nil, err
	}
	pool := hashing.NewPool(hashing.PoolOptions{
		Workers:       c.HashWorkers,
		Queue:         c.HashQueue,
		Policy:        policy,
		OnQueueChange: app.metrics.SetQueueDepth,
	})
	app.closers = append(app.closers, func(context.Context) error { pool.Close(); return nil })

	publisher, err := openPublisher(c)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func(context.Context) error { return publisher.Close() })

	app.userService, err = services.NewUserService(ctx, rm,
		hashing.NewHasher(pool, argon, app.metrics), issuer, publisher, logger, app.metrics,
		services.Options{
			RefreshTTL:          c.RefreshTokenValidityDuration,
			TxTimeout:           c.TxTimeout,
			RevokeFamilyOnReuse: c.RevokeFamilyOnReuse,
			ReuseGracePeriod:    c.ReuseGracePeriod,
		})
	if err != nil {
		return nil, err
	}

	return app, nil
}

// OpenRepositoryManager opens the store selected by c.Store.
func OpenRepositoryManager(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, error) {
	switch c.Store {
	case config.StoreMemory:
		return memory.NewRepositoryManager(), nil
	case config.StorePostgres:
		db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN, repomanager.PoolOptions{
			MaxOpenConns:    c.DBMaxOpenConns,
			MaxIdleConns:    c.DBMaxIdleConns,
			ConnMaxLifetime: c.DBConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		return repomanager.NewPostgresRepositoryManager(db), nil
	default:
		return nil, fmt.Errorf("unknown store %q", c.Store)
	}
}

func openPublisher(c *config.Config) (events.Publisher, error) {
	if c.NATSURL == "" {
		return events.NopPublisher{}, nil
	}
	return events.ConnectNATS(c.NATSURL, serviceName)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is done, a signal arrives or a server fails, then
// releases every resource.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	type runner interface{ Run(context.Context) error }
	runners := []runner{gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService)}
	if app.config.EndpointAddrHTTP != "" {
		router := hs.NewRouter(hs.NewHandler(app.userService, app.metrics.Handler(), app.logger))
		runners = append(runners, hs.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, router))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, r := range runners {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				app.logger.Error(ctx, "server failed", "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				cancelFunc()
			}
		}()
	}
	wg.Wait()

	app.logger.Info(ctx, "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := app.close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// UserService returns the wired service, for tools that call it directly.
func (app *App) UserService() *services.UserService {
	return app.userService
}

// Close releases what NewApp opened. Run calls it on the way out.
func (app *App) Close(ctx context.Context) error {
	return app.close(ctx)
}

func (app *App) close(ctx context.Context) error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
