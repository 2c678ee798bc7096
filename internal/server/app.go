// Package server wires configuration, storage, the auth service and the
// gRPC and metrics endpoints into a runnable application.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	grpcServer  *gs.GRPCServer
	metrics     *metrics.Metrics
}

// NewApp builds every component from c. Storage is PostgreSQL when a DSN is
// configured and in-memory otherwise; migrations run before NewApp returns.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	logger := logging.NewJSONLogger(os.Stdout, level)

	hasher, err := cryptox.NewPasswordHasher(c.PasswordHasher, c.BcryptCost)
	if err != nil {
		return nil, err
	}

	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Secret:   c.SecretKey,
		Issuer:   c.Issuer,
		Audience: c.Audience,
		Validity: c.AccessTokenValidityDuration,
	})
	if err != nil {
		return nil, err
	}

	rm, err := newRepositoryManager(ctx, c, logger)
	if err != nil {
		return nil, err
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	svc := services.NewAuthService(rm, hasher, issuer, logger, c)
	m := metrics.New()

	return &App{
		config:      c,
		logger:      logger,
		repomanager: rm,
		grpcServer:  gs.NewGRPCServer(c.EndpointAddrGRPC, logger, svc, issuer, m),
		metrics:     m,
	}, nil
}

func newRepositoryManager(ctx context.Context, c *config.Config, l logging.Logger) (repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == "" {
		l.Warn(ctx, "no database configured, accounts are kept in memory")
		return repomanager.NewInMemoryRepositoryManager(), nil
	}
	rm, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	return rm, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a termination signal arrives, ctx is cancelled or one of
// the endpoints fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.grpcServer.Run(gctx)
	})
	if app.config.MetricsAddr != "" {
		g.Go(func() error {
			return app.metrics.Serve(gctx, app.config.MetricsAddr, app.logger)
		})
	}

	err := g.Wait()
	if cerr := app.repomanager.Close(); cerr != nil {
		app.logger.Error(ctx, "closing storage", "error", cerr)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}
