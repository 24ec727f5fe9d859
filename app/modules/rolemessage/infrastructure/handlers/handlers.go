package rolehandlers

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	roleevents "github.com/rolewarden/rolewarden/app/events"
	"github.com/rolewarden/rolewarden/internal/observability/attr"
	rolemetrics "github.com/rolewarden/rolewarden/internal/observability/metrics/rolemessage"
)

// Handlers consumes role message outcome events for the audit trail.
type Handlers interface {
	HandleRolesApplied(msg *message.Message) error
	HandleActivationRejected(msg *message.Message) error
	HandleReconcileCompleted(msg *message.Message) error
}

// RoleHandlers implements Handlers. These are terminal consumers: they
// log the audit line and record metrics, publishing nothing further.
type RoleHandlers struct {
	logger  *slog.Logger
	metrics rolemetrics.RoleMetrics
	tracer  trace.Tracer
}

// NewRoleHandlers creates a new RoleHandlers.
func NewRoleHandlers(logger *slog.Logger, metrics rolemetrics.RoleMetrics, tracer trace.Tracer) *RoleHandlers {
	return &RoleHandlers{
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

// HandleRolesApplied records the audit line for an accepted activation.
func (h *RoleHandlers) HandleRolesApplied(msg *message.Message) error {
	ctx, span := h.tracer.Start(msg.Context(), "HandleRolesApplied")
	defer span.End()

	var payload roleevents.RolesAppliedPayloadV1
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal roles applied payload: %w", err)
	}

	h.logger.InfoContext(ctx, "Roles applied",
		attr.ExtractCorrelationID(ctx),
		attr.String("guild_id", string(payload.GuildID)),
		attr.String("message_id", string(payload.MessageID)),
		attr.String("member_id", string(payload.MemberID)),
		attr.Int("added", len(payload.Added)),
		attr.Int("removed", len(payload.Removed)),
		attr.Int("failures", len(payload.Failures)),
	)
	return nil
}

// HandleActivationRejected records the audit line for a gated activation.
func (h *RoleHandlers) HandleActivationRejected(msg *message.Message) error {
	ctx, span := h.tracer.Start(msg.Context(), "HandleActivationRejected")
	defer span.End()

	var payload roleevents.ActivationRejectedPayloadV1
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal activation rejected payload: %w", err)
	}

	h.logger.InfoContext(ctx, "Activation rejected",
		attr.ExtractCorrelationID(ctx),
		attr.String("guild_id", string(payload.GuildID)),
		attr.String("message_id", string(payload.MessageID)),
		attr.String("member_id", string(payload.MemberID)),
		attr.String("reason", payload.Reason),
	)
	return nil
}

// HandleReconcileCompleted records the summary of a reconcile pass.
func (h *RoleHandlers) HandleReconcileCompleted(msg *message.Message) error {
	ctx, span := h.tracer.Start(msg.Context(), "HandleReconcileCompleted")
	defer span.End()

	var payload roleevents.ReconcileCompletedPayloadV1
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal reconcile completed payload: %w", err)
	}

	h.logger.InfoContext(ctx, "Reconcile completed",
		attr.ExtractCorrelationID(ctx),
		attr.String("guild_id", string(payload.GuildID)),
		attr.String("operation", payload.Operation),
		attr.Int("messages_checked", payload.MessagesChecked),
		attr.Int("issues_found", payload.IssuesFound),
		attr.Int("issues_repaired", payload.IssuesRepaired),
	)
	return nil
}
