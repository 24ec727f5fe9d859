package roleservice

import (
	"context"
	"errors"
	"fmt"

	roleevents "github.com/rolewarden/rolewarden/app/events"
	roledb "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/repositories"
	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
	"github.com/rolewarden/rolewarden/internal/observability/attr"
)

// ActivationApplied is the success payload for an accepted activation.
type ActivationApplied struct {
	Added    []sharedtypes.RoleID
	Removed  []sharedtypes.RoleID
	Failures []roleevents.RoleMutationFailure
}

// ActivationRejected is the failure payload for a gated activation. The
// member keeps every role they had; nothing was sent to the platform.
type ActivationRejected struct {
	Reason RejectReason
}

// ActivateTrigger handles a single reaction or button activation against a
// role message. Resolution runs against a fresh member role fetch so that
// unique and exclusive pre-removals see the live state.
func (s *RoleMessageService) ActivateTrigger(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
	trigger sharedtypes.TriggerKey,
	memberID sharedtypes.MemberID,
	kind ActivationKind,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "ActivateTrigger", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		target, guild, err := s.loadActivationTarget(ctx, guildID, messageID)
		if err != nil {
			return RoleOperationResult{}, err
		}

		memberRoles, err := s.fetchMemberRoles(ctx, guildID, memberID)
		if err != nil {
			return RoleOperationResult{}, err
		}

		outcome := Resolve(memberRoles, guild, target, trigger, kind)
		result, err := s.applyOutcome(ctx, target, memberID, trigger, outcome)
		if err == nil && kind == ActivationSelect && target.Style == roletypes.StyleReaction {
			s.tidyReactions(ctx, target, memberID, trigger, outcome)
		}
		return result, err
	})
}

// tidyReactions keeps a reaction message's physical reactions in step
// with the resolved outcome. A rejected select leaves a reaction the
// member gained nothing from; a unique or exclusive swap leaves the
// reactions of the roles just removed. Removal is best effort since role
// state is already settled.
func (s *RoleMessageService) tidyReactions(
	ctx context.Context,
	target *roletypes.RoleMessage,
	memberID sharedtypes.MemberID,
	trigger sharedtypes.TriggerKey,
	outcome Outcome,
) {
	var stale []sharedtypes.TriggerKey
	if outcome.Rejected {
		stale = append(stale, trigger)
	} else {
		for _, roleID := range outcome.Remove {
			for key, b := range target.Triggers {
				if b.RoleID == roleID && key != trigger {
					stale = append(stale, key)
					break
				}
			}
		}
	}

	for _, key := range stale {
		if err := s.platform.RemoveMemberReaction(ctx, target.ChannelID, target.MessageID, key, memberID); err != nil {
			s.logger.WarnContext(ctx, "Stale reaction removal refused by platform",
				attr.ExtractCorrelationID(ctx),
				attr.String("guild_id", string(target.GuildID)),
				attr.String("message_id", string(target.MessageID)),
				attr.String("trigger", string(key)),
				attr.Error(err),
			)
		}
	}
}

// ApplyMenuSelection handles a select-menu submission: the desired slice is
// the full selection state for one category, so previously held category
// roles missing from it are deselections.
func (s *RoleMessageService) ApplyMenuSelection(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
	categoryID sharedtypes.CategoryID,
	memberID sharedtypes.MemberID,
	desired []sharedtypes.RoleID,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "ApplyMenuSelection", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		target, guild, err := s.loadActivationTarget(ctx, guildID, messageID)
		if err != nil {
			return RoleOperationResult{}, err
		}
		if target.Style != roletypes.StyleMenu {
			return RoleOperationResult{}, ErrNotMenuStyle
		}
		if _, ok := target.Category(categoryID); !ok {
			return RoleOperationResult{}, fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
		}

		memberRoles, err := s.fetchMemberRoles(ctx, guildID, memberID)
		if err != nil {
			return RoleOperationResult{}, err
		}

		outcome := ResolveMenu(memberRoles, guild, target, categoryID, desired)
		return s.applyOutcome(ctx, target, memberID, "", outcome)
	})
}

// loadActivationTarget fetches the target document plus the guild's live
// documents for cross-message exclusive resolution. Stale targets are
// treated as unbound: the configuration exists but must not fire.
func (s *RoleMessageService) loadActivationTarget(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
) (*roletypes.RoleMessage, []*roletypes.RoleMessage, error) {
	target, err := s.store.Message(ctx, guildID, messageID)
	if err != nil {
		if errors.Is(err, roledb.ErrNotFound) {
			return nil, nil, ErrRoleMessageMissing
		}
		return nil, nil, err
	}
	if !target.Live() {
		return nil, nil, ErrRoleMessageStale
	}

	all, err := s.store.Guild(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}
	guild := make([]*roletypes.RoleMessage, 0, len(all))
	for _, m := range all {
		if m.Live() {
			guild = append(guild, m)
		}
	}
	return target, guild, nil
}

func (s *RoleMessageService) fetchMemberRoles(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	memberID sharedtypes.MemberID,
) (sharedtypes.RoleSet, error) {
	roles, err := s.platform.MemberRoles(ctx, guildID, memberID)
	if err != nil {
		return nil, fmt.Errorf("fetch member roles: %w", err)
	}
	return sharedtypes.NewRoleSet(roles...), nil
}

// applyOutcome issues the resolver's mutation plan against the platform.
// Each mutation is independent: a refused add never blocks the removes
// that keep unique and exclusive invariants honest.
func (s *RoleMessageService) applyOutcome(
	ctx context.Context,
	target *roletypes.RoleMessage,
	memberID sharedtypes.MemberID,
	trigger sharedtypes.TriggerKey,
	outcome Outcome,
) (RoleOperationResult, error) {
	if outcome.Rejected {
		s.metrics.RecordActivationRejected(ctx, target.GuildID, string(outcome.Reason))
		s.publish(ctx, roleevents.ActivationRejectedV1, roleevents.ActivationRejectedPayloadV1{
			GuildID:   target.GuildID,
			MessageID: target.MessageID,
			MemberID:  memberID,
			Trigger:   trigger,
			Reason:    string(outcome.Reason),
		})
		return RoleOperationResult{Failure: &ActivationRejected{Reason: outcome.Reason}}, nil
	}

	var failures []roleevents.RoleMutationFailure
	for _, roleID := range outcome.Remove {
		if err := s.platform.RemoveRole(ctx, target.GuildID, memberID, roleID); err != nil {
			failures = append(failures, roleevents.RoleMutationFailure{RoleID: roleID, Op: "remove", Reason: err.Error()})
			s.metrics.RecordRoleMutationFailure(ctx, target.GuildID, "remove")
			s.logger.WarnContext(ctx, "Role removal refused by platform",
				attr.ExtractCorrelationID(ctx),
				attr.String("guild_id", string(target.GuildID)),
				attr.String("role_id", string(roleID)),
				attr.Error(err),
			)
		}
	}
	for _, roleID := range outcome.Add {
		if err := s.platform.AddRole(ctx, target.GuildID, memberID, roleID); err != nil {
			failures = append(failures, roleevents.RoleMutationFailure{RoleID: roleID, Op: "add", Reason: err.Error()})
			s.metrics.RecordRoleMutationFailure(ctx, target.GuildID, "add")
			s.logger.WarnContext(ctx, "Role grant refused by platform",
				attr.ExtractCorrelationID(ctx),
				attr.String("guild_id", string(target.GuildID)),
				attr.String("role_id", string(roleID)),
				attr.Error(err),
			)
		}
	}

	s.publish(ctx, roleevents.RolesAppliedV1, roleevents.RolesAppliedPayloadV1{
		GuildID:   target.GuildID,
		MessageID: target.MessageID,
		MemberID:  memberID,
		Added:     outcome.Add,
		Removed:   outcome.Remove,
		Failures:  failures,
	})

	return RoleOperationResult{Success: &ActivationApplied{
		Added:    outcome.Add,
		Removed:  outcome.Remove,
		Failures: failures,
	}}, nil
}
