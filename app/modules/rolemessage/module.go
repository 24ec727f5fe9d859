package rolemessage

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"

	"github.com/rolewarden/rolewarden/app/eventbus"
	roleservice "github.com/rolewarden/rolewarden/app/modules/rolemessage/application"
	roledispatch "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/dispatch"
	rolehandlers "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/handlers"
	roledb "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/repositories"
	rolerouter "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/router"
	"github.com/rolewarden/rolewarden/config"
	"github.com/rolewarden/rolewarden/internal/observability"
)

// Module bundles the role message engine: store, service, dispatch
// registrar, and the audit event router.
type Module struct {
	Service    roleservice.Service
	Store      *roledb.CachedStore
	Registrar  *roledispatch.Registrar
	RoleRouter *rolerouter.RoleRouter

	config        *config.Config
	observability *observability.Observability
	cancelFunc    context.CancelFunc
}

// NewModule wires the role message module together. The platform adapter
// is injected so the engine stays ignorant of discordgo.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	obs *observability.Observability,
	db *bun.DB,
	bus eventbus.EventBus,
	router *message.Router,
	platform roleservice.Platform,
) (*Module, error) {
	logger := obs.Logger
	logger.InfoContext(ctx, "rolemessage.NewModule called")

	repo := &roledb.RoleMessageDBImpl{DB: db}
	store := roledb.NewCachedStore(repo, logger)
	registrar := roledispatch.NewRegistrar(logger)

	service := roleservice.NewRoleMessageService(
		store,
		platform,
		registrar,
		bus,
		logger,
		obs.RoleMetrics,
		obs.Tracer,
	)
	service.SetReactionPace(cfg.Engine.ReactionPace)

	roleRouter := rolerouter.NewRoleRouter(logger, router, bus)
	handlers := rolehandlers.NewRoleHandlers(logger, obs.RoleMetrics, obs.Tracer)
	if err := roleRouter.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure role router: %w", err)
	}

	return &Module{
		Service:       service,
		Store:         store,
		Registrar:     registrar,
		RoleRouter:    roleRouter,
		config:        cfg,
		observability: obs,
	}, nil
}

// Run drives the store's write-behind flush loop until the context ends.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Logger
	logger.InfoContext(ctx, "Starting rolemessage module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	m.Store.Run(ctx, m.config.Engine.FlushInterval)
	logger.InfoContext(ctx, "Rolemessage module stopped")
}

// Close stops the module and drains pending writes.
func (m *Module) Close() error {
	logger := m.observability.Logger
	logger.Info("Stopping rolemessage module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	flushed := m.Store.Flush(context.Background())
	if flushed > 0 {
		logger.Info("Flushed pending documents on shutdown", "count", flushed)
	}
	return nil
}
