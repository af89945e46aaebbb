// Package server wires the taskcamp backend together: configuration,
// storage, services and the HTTP and gRPC endpoints, plus the background
// token sweeper. It also handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/taskcamp/internal/logging"
	"github.com/dmitrijs2005/taskcamp/internal/server/access"
	"github.com/dmitrijs2005/taskcamp/internal/server/auth"
	"github.com/dmitrijs2005/taskcamp/internal/server/clock"
	"github.com/dmitrijs2005/taskcamp/internal/server/config"
	"github.com/dmitrijs2005/taskcamp/internal/server/credentials"
	"github.com/dmitrijs2005/taskcamp/internal/server/housekeeping"
	"github.com/dmitrijs2005/taskcamp/internal/server/httpapi"
	"github.com/dmitrijs2005/taskcamp/internal/server/metrics"
	"github.com/dmitrijs2005/taskcamp/internal/server/notify"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskcamp/internal/server/services"
	"github.com/dmitrijs2005/taskcamp/internal/server/sessions"
	"github.com/dmitrijs2005/taskcamp/internal/server/singleuse"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/taskcamp/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	closers []func() error

	http    *httpapi.Server
	grpc    *gs.GRPCServer
	sweeper *housekeeping.Sweeper
}

// NewApp connects to storage, applies migrations and builds every component.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, rm, err := repomanager.Connect(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, closers: []func() error{db.Close}}
	if c.DatabaseDSN == repomanager.MemoryDSN {
		logger.Warn(ctx, "using in-memory storage, data is lost on exit")
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	notifier, err := app.newNotifier()
	if err != nil {
		app.Close()
		return nil, err
	}

	store, err := credentials.NewStore(c.BcryptCost)
	if err != nil {
		app.Close()
		return nil, err
	}

	sysClock := clock.System{}
	m := metrics.New()
	issuer := auth.NewTokenIssuer(c.AccessTokenSecret, c.RefreshTokenSecret,
		c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration, sysClock)

	users := services.NewUserService(db, rm, services.UserDeps{
		Credentials: store,
		Sessions:    sessions.NewRotator(issuer, logger, m),
		Tokens:      singleuse.NewManager(singleuse.NewGenerator(c.SingleUseTokenValidityDuration, sysClock), sysClock, logger, m),
		Notifier:    notifier,
		Links:       notify.Links{BaseURL: c.BaseURL},
		Logger:      logger,
		Recorder:    m,
	})

	app.http = httpapi.NewServer(c.EndpointAddrHTTP, httpapi.Deps{
		Users:       users,
		Projects:    services.NewProjectService(db, rm, logger),
		Issuer:      issuer,
		Gate:        access.NewGate(logger, m),
		Memberships: rm.Memberships(db),
		Metrics:     m,
		Logger:      logger,
		Cookies: httpapi.CookieConfig{
			Secure:     c.CookieSecure,
			AccessTTL:  c.AccessTokenValidityDuration,
			RefreshTTL: c.RefreshTokenValidityDuration,
		},
		RequestTimeout: c.RequestTimeout,
	})
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, issuer)
	app.sweeper = housekeeping.NewSweeper(rm.Users(db), sysClock, logger, c.RequestTimeout)

	return app, nil
}

// newNotifier returns the Redis outbox when configured and the log
// notifier otherwise.
func (app *App) newNotifier() (notify.Notifier, error) {
	if app.config.RedisURL == "" {
		return notify.NewLogNotifier(app.logger), nil
	}
	client, err := notify.NewRedisClient(app.config.RedisURL)
	if err != nil {
		return nil, err
	}
	n := notify.NewRedisNotifier(client, notify.DefaultOutboxKey)
	app.closers = append(app.closers, n.Close)
	return n, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a signal arrives or any component fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(ctx) })
	g.Go(func() error { return app.grpc.Run(ctx) })
	g.Go(func() error { return app.sweeper.Run(ctx, app.config.PurgeSchedule) })

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// Close releases storage and notifier connections.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error(context.Background(), "close failed", "error", err)
		}
	}
}
