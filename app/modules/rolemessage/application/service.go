package roleservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/rolewarden/rolewarden/app/eventbus"
	roledb "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/repositories"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
	"github.com/rolewarden/rolewarden/internal/observability/attr"
	rolemetrics "github.com/rolewarden/rolewarden/internal/observability/metrics/rolemessage"
)

// RoleMessageService implements the Service interface.
type RoleMessageService struct {
	store    roledb.Store
	platform Platform
	dispatch Dispatch
	eventBus eventbus.EventBus
	logger   *slog.Logger
	metrics  rolemetrics.RoleMetrics
	tracer   trace.Tracer

	// reactionLimit throttles reaction replay during Rebuild so a large
	// guild does not trip the platform rate limiter.
	reactionLimit *rate.Limiter
}

var _ Service = (*RoleMessageService)(nil)

// NewRoleMessageService creates a new RoleMessageService.
func NewRoleMessageService(
	store roledb.Store,
	platform Platform,
	dispatch Dispatch,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	metrics rolemetrics.RoleMetrics,
	tracer trace.Tracer,
) *RoleMessageService {
	return &RoleMessageService{
		store:         store,
		platform:      platform,
		dispatch:      dispatch,
		eventBus:      eventBus,
		logger:        logger,
		metrics:       metrics,
		tracer:        tracer,
		reactionLimit: rate.NewLimiter(rate.Every(300*time.Millisecond), 1),
	}
}

// SetReactionPace overrides the rebuild reaction pacing. Zero or negative
// disables throttling.
func (s *RoleMessageService) SetReactionPace(interval time.Duration) {
	if interval <= 0 {
		s.reactionLimit = rate.NewLimiter(rate.Inf, 1)
		return
	}
	s.reactionLimit = rate.NewLimiter(rate.Every(interval), 1)
}

// operationFunc is the signature for service operation functions.
type operationFunc func(ctx context.Context) (RoleOperationResult, error)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery. This standardizes observability across all service methods.
func (s *RoleMessageService) withTelemetry(
	ctx context.Context,
	operationName string,
	guildID sharedtypes.GuildID,
	op operationFunc,
) (result RoleOperationResult, err error) {
	if ctx == nil {
		return RoleOperationResult{}, ErrNilContext
	}

	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.String("guild_id", string(guildID)),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, guildID)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, guildID, time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("guild_id", string(guildID)),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, guildID)
			span.RecordError(err)
			result = RoleOperationResult{}
		}
	}()

	result, err = op(ctx)
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("guild_id", string(guildID)),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, guildID)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.Failure != nil {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("guild_id", string(guildID)),
			attr.Any("failure_payload", result.Failure),
		)
	}

	if result.Success != nil {
		s.logger.InfoContext(ctx, "Operation completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("guild_id", string(guildID)),
			attr.Any("success_type", fmt.Sprintf("%T", result.Success)),
		)
		s.metrics.RecordOperationSuccess(ctx, operationName, guildID)
	}

	return result, nil
}

// publish sends an outcome event, logging but never failing the operation.
func (s *RoleMessageService) publish(ctx context.Context, topic string, payload any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, topic, payload); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			attr.ExtractCorrelationID(ctx),
			attr.String("topic", topic),
			attr.Error(err),
		)
	}
}
