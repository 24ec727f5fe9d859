package rolerouter

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/rolewarden/rolewarden/app/eventbus"
	roleevents "github.com/rolewarden/rolewarden/app/events"
	rolehandlers "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/handlers"
)

// RoleRouter wires outcome event topics to their audit handlers.
type RoleRouter struct {
	logger *slog.Logger
	Router *message.Router
	bus    eventbus.EventBus
}

// NewRoleRouter creates a new RoleRouter.
func NewRoleRouter(logger *slog.Logger, router *message.Router, bus eventbus.EventBus) *RoleRouter {
	return &RoleRouter{
		logger: logger,
		Router: router,
		bus:    bus,
	}
}

// Configure sets up middleware and registers the audit handlers.
func (r *RoleRouter) Configure(_ context.Context, handlers rolehandlers.Handlers) error {
	r.Router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
	)

	sub := r.bus.Subscriber()
	r.Router.AddNoPublisherHandler(
		"rolemessage.audit.applied",
		roleevents.RolesAppliedV1,
		sub,
		handlers.HandleRolesApplied,
	)
	r.Router.AddNoPublisherHandler(
		"rolemessage.audit.rejected",
		roleevents.ActivationRejectedV1,
		sub,
		handlers.HandleActivationRejected,
	)
	r.Router.AddNoPublisherHandler(
		"rolemessage.audit.reconcile",
		roleevents.ReconcileCompletedV1,
		sub,
		handlers.HandleReconcileCompleted,
	)
	return nil
}
