package app

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bwmarrin/discordgo"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/rolewarden/rolewarden/app/adapters/discord"
	"github.com/rolewarden/rolewarden/app/eventbus"
	"github.com/rolewarden/rolewarden/app/modules/rolemessage"
	"github.com/rolewarden/rolewarden/config"
	"github.com/rolewarden/rolewarden/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived resource: database, event bus, watermill
// router, discord gateway, and the role message module.
type App struct {
	Cfg           *config.Config
	Observability *observability.Observability
	DB            *bun.DB
	EventBus      eventbus.EventBus
	Router        *message.Router
	RoleModule    *rolemessage.Module
	Gateway       *discord.Gateway

	wg sync.WaitGroup
}

// NewApp initializes the application with the necessary services and configuration.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	obs := observability.Init(observability.Config{
		Environment:    cfg.Observability.Environment,
		MetricsAddress: cfg.Observability.MetricsAddress,
	})
	logger := obs.Logger

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	bus := eventbus.New(logger)

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create watermill router: %w", err)
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	platform := discord.NewAdapter(session, logger)

	module, err := rolemessage.NewModule(ctx, cfg, obs, db, bus, router, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rolemessage module: %w", err)
	}

	gateway := discord.NewGateway(session, module.Service, module.Store, module.Registrar, logger)

	return &App{
		Cfg:           cfg,
		Observability: obs,
		DB:            db,
		EventBus:      bus,
		Router:        router,
		RoleModule:    module,
		Gateway:       gateway,
	}, nil
}

// Run starts the router, the module loops, and the gateway, then blocks
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	logger := a.Observability.Logger

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.Router.Run(ctx); err != nil {
			logger.Error("Watermill router stopped", "error", err)
		}
	}()

	// Wait for the router before the gateway can produce events.
	select {
	case <-a.Router.Running():
	case <-ctx.Done():
		return ctx.Err()
	}

	a.wg.Add(1)
	go a.RoleModule.Run(ctx, &a.wg)

	a.Observability.ServeMetrics(a.Cfg.Observability.MetricsAddress)

	if err := a.Gateway.Start(ctx); err != nil {
		return fmt.Errorf("failed to start discord gateway: %w", err)
	}
	logger.InfoContext(ctx, "Application running")

	<-ctx.Done()
	return nil
}

// Close shuts everything down in reverse dependency order.
func (a *App) Close() error {
	logger := a.Observability.Logger
	logger.Info("Shutting down application")

	if err := a.Gateway.Close(); err != nil {
		logger.Error("Error closing discord gateway", "error", err)
	}
	if err := a.RoleModule.Close(); err != nil {
		logger.Error("Error closing rolemessage module", "error", err)
	}
	if err := a.Router.Close(); err != nil {
		logger.Error("Error closing watermill router", "error", err)
	}
	if err := a.EventBus.Close(); err != nil {
		logger.Error("Error closing event bus", "error", err)
	}
	if err := a.DB.Close(); err != nil {
		logger.Error("Error closing database connection", "error", err)
	}

	a.wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Observability.Shutdown(shutdownCtx)
}
