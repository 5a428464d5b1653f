// Package server wires configuration, storage, authorization and the
// registry façade together and runs the gRPC and metrics listeners until
// the process is signalled.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/userledger/internal/acl"
	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/kv/memkv"
	"github.com/dmitrijs2005/userledger/internal/kv/rediskv"
	"github.com/dmitrijs2005/userledger/internal/kv/sqlkv"
	"github.com/dmitrijs2005/userledger/internal/logging"
	"github.com/dmitrijs2005/userledger/internal/registry"
	"github.com/dmitrijs2005/userledger/internal/server/config"
	"github.com/dmitrijs2005/userledger/internal/server/metrics"
	"github.com/dmitrijs2005/userledger/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/userledger/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

// Store is a transactional store that owns external resources.
type Store interface {
	kv.Transactor
	io.Closer
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    Store
	checker  acl.Checker
	registry *services.Registry
	gatherer prometheus.Gatherer
}

func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	logger := logging.NewJSON(w, c.LogLevel)

	store, err := OpenStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	checker, err := NewChecker(c)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("acl init error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	core := registry.New(
		registry.WithDefaultSessionTimeout(uint64(c.DefaultSessionTimeout/time.Second)),
		registry.WithLogger(logger),
	)
	svc := services.NewRegistry(store, core,
		services.WithACL(checker),
		services.WithLogger(logger),
		services.WithMetrics(metrics.NewCollector(reg)),
	)

	return &App{config: c, logger: logger, store: store, checker: checker, registry: svc, gatherer: reg}, nil
}

// OpenStore opens the backend named by c.StorageDriver.
func OpenStore(ctx context.Context, c *config.Config) (Store, error) {
	switch c.StorageDriver {
	case config.StorageMemory:
		return memkv.New(), nil
	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping error: %w", err)
		}
		return rediskv.New(rdb, c.RedisPrefix), nil
	default:
		d, err := sqlkv.DialectFor(c.StorageDriver)
		if err != nil {
			return nil, err
		}
		return sqlkv.Open(ctx, d, c.DatabaseDSN)
	}
}

// NewChecker builds the ACL checker for c.ACLMode.
func NewChecker(c *config.Config) (acl.Checker, error) {
	switch c.ACLMode {
	case config.ACLGRPC:
		return acl.Dial(c.ACLEndpoint)
	case config.ACLPolicy:
		return acl.NewPolicyChecker(c.ACLRules)
	case config.ACLNone, "":
		return acl.Deny{}, nil
	default:
		return nil, fmt.Errorf("unknown acl mode %q", c.ACLMode)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startMetricsServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           metrics.Router(app.gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Run instantiates the store if needed and serves until ctx is cancelled,
// a termination signal arrives or a listener fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.close(ctx)

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageDriver, "acl", app.config.ACLMode)
	app.initSignalHandler(cancelFunc)

	owner := app.config.Owner()
	if err := app.registry.EnsureInstantiated(ctx, owner.Principal, &owner); err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.registry, app.config.SecretKey)
		return s.Run(gctx)
	})
	if app.config.MetricsAddr != "" {
		g.Go(func() error {
			return app.startMetricsServer(gctx)
		})
	}

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "app stopped", "error", err)
	}
	return err
}

func (app *App) close(ctx context.Context) {
	if c, ok := app.checker.(io.Closer); ok {
		if err := c.Close(); err != nil {
			app.logger.Warn(ctx, "acl close", "error", err)
		}
	}
	if err := app.store.Close(); err != nil {
		app.logger.Warn(ctx, "store close", "error", err)
	}
}
