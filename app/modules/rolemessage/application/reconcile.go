package roleservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	roleevents "github.com/rolewarden/rolewarden/app/events"
	roledb "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/repositories"
	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
	"github.com/rolewarden/rolewarden/internal/observability/attr"
)

// Issue kinds reported by Verify and repaired by Cleanup or Rebuild.
const (
	IssueMessageGone   = "message_gone"
	IssueRoleGone      = "role_gone"
	IssueRoleUnmanage  = "role_unmanageable"
	IssueMessageStale  = "message_stale"
	IssueMessageEmpty  = "message_emptied"
	IssueCategoryEmpty = "category_empty"
)

// MessageIssue is one problem found on one role message.
type MessageIssue struct {
	MessageID sharedtypes.MessageID `json:"message_id"`
	Kind      string                `json:"kind"`
	Detail    string                `json:"detail,omitempty"`
}

// ReconcileReport is the success payload for Verify, Cleanup and Rebuild.
type ReconcileReport struct {
	Operation       string         `json:"operation"`
	MessagesChecked int            `json:"messages_checked"`
	Issues          []MessageIssue `json:"issues,omitempty"`
	Repaired        int            `json:"repaired"`
	CompletedAt     time.Time      `json:"completed_at"`
}

// Verify audits the guild's role messages without changing anything: it
// reports deleted platform messages, bindings to deleted roles, and roles
// the bot's hierarchy position cannot manage.
func (s *RoleMessageService) Verify(
	ctx context.Context,
	guildID sharedtypes.GuildID,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "Verify", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		msgs, err := s.store.Guild(ctx, guildID)
		if err != nil {
			return RoleOperationResult{}, err
		}
		liveRoles, botPos, err := s.guildRoleState(ctx, guildID)
		if err != nil {
			return RoleOperationResult{}, err
		}

		report := ReconcileReport{Operation: "verify", MessagesChecked: len(msgs)}
		for _, msg := range msgs {
			if msg.Stale {
				report.Issues = append(report.Issues, MessageIssue{MessageID: msg.MessageID, Kind: IssueMessageStale})
				continue
			}
			exists, err := s.platform.MessageExists(ctx, msg.ChannelID, msg.MessageID)
			if err != nil {
				return RoleOperationResult{}, fmt.Errorf("check message %s: %w", msg.MessageID, err)
			}
			if !exists {
				report.Issues = append(report.Issues, MessageIssue{MessageID: msg.MessageID, Kind: IssueMessageGone})
			}
			for _, roleID := range msg.BoundRoleIDs() {
				pos, ok := liveRoles[roleID]
				if !ok {
					report.Issues = append(report.Issues, MessageIssue{
						MessageID: msg.MessageID,
						Kind:      IssueRoleGone,
						Detail:    string(roleID),
					})
					continue
				}
				if pos >= botPos {
					report.Issues = append(report.Issues, MessageIssue{
						MessageID: msg.MessageID,
						Kind:      IssueRoleUnmanage,
						Detail:    string(roleID),
					})
				}
			}
			for _, cat := range msg.Categories {
				if len(cat.Bindings) == 0 {
					report.Issues = append(report.Issues, MessageIssue{
						MessageID: msg.MessageID,
						Kind:      IssueCategoryEmpty,
						Detail:    string(cat.ID),
					})
				}
			}
		}

		report.CompletedAt = time.Now().UTC()
		s.publishReconcile(ctx, guildID, report)
		return RoleOperationResult{Success: &report}, nil
	})
}

// Cleanup repairs what Verify reports: documents whose platform message is
// gone are marked stale (configuration is kept for rebuild or clone),
// bindings to deleted roles are dropped, and a document emptied by that
// removal is deleted. Running it twice changes nothing the second time.
func (s *RoleMessageService) Cleanup(
	ctx context.Context,
	guildID sharedtypes.GuildID,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "Cleanup", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		msgs, err := s.store.Guild(ctx, guildID)
		if err != nil {
			return RoleOperationResult{}, err
		}
		liveRoles, _, err := s.guildRoleState(ctx, guildID)
		if err != nil {
			return RoleOperationResult{}, err
		}

		report := ReconcileReport{Operation: "cleanup", MessagesChecked: len(msgs)}
		for _, msg := range msgs {
			changed := false

			if !msg.Stale {
				exists, err := s.platform.MessageExists(ctx, msg.ChannelID, msg.MessageID)
				if err != nil {
					return RoleOperationResult{}, fmt.Errorf("check message %s: %w", msg.MessageID, err)
				}
				if !exists {
					msg.Stale = true
					changed = true
					report.Issues = append(report.Issues, MessageIssue{MessageID: msg.MessageID, Kind: IssueMessageGone})
				}
			}

			dropped := dropDeadBindings(msg, liveRoles)
			if dropped {
				changed = true
				report.Issues = append(report.Issues, MessageIssue{MessageID: msg.MessageID, Kind: IssueRoleGone})
			}

			// A document emptied by dead-role removal has nothing left to
			// recover; retire it entirely.
			if dropped && msg.Empty() {
				if err := s.store.Delete(ctx, guildID, msg.MessageID); err != nil {
					return RoleOperationResult{}, err
				}
				s.dispatch.UnregisterMessage(guildID, msg.MessageID)
				report.Issues = append(report.Issues, MessageIssue{MessageID: msg.MessageID, Kind: IssueMessageEmpty})
				report.Repaired++
				continue
			}

			if changed {
				if err := s.store.Put(ctx, msg); err != nil {
					return RoleOperationResult{}, err
				}
				if msg.Stale {
					s.dispatch.UnregisterMessage(guildID, msg.MessageID)
				} else {
					s.dispatch.RegisterMessage(msg)
				}
				report.Repaired++
			}
		}

		report.CompletedAt = time.Now().UTC()
		s.publishReconcile(ctx, guildID, report)
		return RoleOperationResult{Success: &report}, nil
	})
}

// Rebuild re-renders every role message from its stored document. Stale
// documents whose platform message reappeared (or that get re-sent here)
// are revived. Reaction replay is paced by the service's rate limiter.
func (s *RoleMessageService) Rebuild(
	ctx context.Context,
	guildID sharedtypes.GuildID,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "Rebuild", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		msgs, err := s.store.Guild(ctx, guildID)
		if err != nil {
			return RoleOperationResult{}, err
		}

		report := ReconcileReport{Operation: "rebuild", MessagesChecked: len(msgs)}
		for _, msg := range msgs {
			exists, err := s.platform.MessageExists(ctx, msg.ChannelID, msg.MessageID)
			if err != nil {
				return RoleOperationResult{}, fmt.Errorf("check message %s: %w", msg.MessageID, err)
			}

			if !exists {
				// Re-send under a fresh message ID and retire the old key.
				oldID := msg.MessageID
				newID, err := s.platform.CreateMessage(ctx, msg)
				if err != nil {
					return RoleOperationResult{}, fmt.Errorf("resend message %s: %w", oldID, err)
				}
				msg.MessageID = newID
				msg.Stale = false
				if err := s.store.Put(ctx, msg); err != nil {
					return RoleOperationResult{}, err
				}
				if err := s.store.Delete(ctx, guildID, oldID); err != nil {
					return RoleOperationResult{}, err
				}
				s.dispatch.UnregisterMessage(guildID, oldID)
				report.Issues = append(report.Issues, MessageIssue{MessageID: oldID, Kind: IssueMessageGone, Detail: string(newID)})
			} else {
				wasStale := msg.Stale
				msg.Stale = false
				if msg.Style != roletypes.StyleReaction {
					if err := s.platform.SyncMessageView(ctx, msg); err != nil {
						return RoleOperationResult{}, fmt.Errorf("sync message %s: %w", msg.MessageID, err)
					}
				}
				if wasStale {
					if err := s.store.Put(ctx, msg); err != nil {
						return RoleOperationResult{}, err
					}
				}
			}

			if msg.Style == roletypes.StyleReaction {
				if err := s.replayReactions(ctx, msg); err != nil {
					return RoleOperationResult{}, fmt.Errorf("replay reactions %s: %w", msg.MessageID, err)
				}
			}

			s.dispatch.RegisterMessage(msg)
			report.Repaired++
		}

		report.CompletedAt = time.Now().UTC()
		s.publishReconcile(ctx, guildID, report)
		return RoleOperationResult{Success: &report}, nil
	})
}

// CloneRoleMessage re-sends an existing document into another channel as a
// new, live role message. The source document is untouched, so cloning a
// stale document is the recovery path after its message was deleted.
func (s *RoleMessageService) CloneRoleMessage(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
	targetChannelID sharedtypes.ChannelID,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "CloneRoleMessage", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		src, err := s.store.Message(ctx, guildID, messageID)
		if err != nil {
			if errors.Is(err, roledb.ErrNotFound) {
				return RoleOperationResult{}, ErrRoleMessageMissing
			}
			return RoleOperationResult{}, err
		}

		clone := src.Clone()
		clone.ChannelID = targetChannelID
		clone.Stale = false

		newID, err := s.platform.CreateMessage(ctx, clone)
		if err != nil {
			return RoleOperationResult{}, fmt.Errorf("send clone: %w", err)
		}
		clone.MessageID = newID

		if err := s.store.Put(ctx, clone); err != nil {
			return RoleOperationResult{}, err
		}
		s.dispatch.RegisterMessage(clone)

		if clone.Style == roletypes.StyleReaction {
			if err := s.replayReactions(ctx, clone); err != nil {
				return RoleOperationResult{}, fmt.Errorf("replay reactions %s: %w", newID, err)
			}
		}

		s.publish(ctx, roleevents.RoleMessageCreatedV1, roleevents.RoleMessageCreatedPayloadV1{
			GuildID:   guildID,
			ChannelID: targetChannelID,
			MessageID: newID,
			Style:     clone.Style,
		})
		return RoleOperationResult{Success: &RoleMessageCreated{MessageID: newID}}, nil
	})
}

// guildRoleState fetches the live role map and the bot's hierarchy position.
func (s *RoleMessageService) guildRoleState(
	ctx context.Context,
	guildID sharedtypes.GuildID,
) (map[sharedtypes.RoleID]int, int, error) {
	roles, err := s.platform.GuildRoles(ctx, guildID)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch guild roles: %w", err)
	}
	botPos, err := s.platform.BotRolePosition(ctx, guildID)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch bot role position: %w", err)
	}
	return roles, botPos, nil
}

// replayReactions clears the message's reactions and re-adds one per bound
// trigger in deterministic order, pacing each add.
func (s *RoleMessageService) replayReactions(ctx context.Context, msg *roletypes.RoleMessage) error {
	if err := s.platform.ClearReactions(ctx, msg.ChannelID, msg.MessageID); err != nil {
		return err
	}
	keys := make([]sharedtypes.TriggerKey, 0, len(msg.Triggers))
	for key := range msg.Triggers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		if s.reactionLimit != nil {
			if err := s.reactionLimit.Wait(ctx); err != nil {
				return err
			}
		}
		if err := s.platform.AddReaction(ctx, msg.ChannelID, msg.MessageID, key); err != nil {
			return err
		}
	}
	return nil
}

// dropDeadBindings removes trigger and category bindings whose role no
// longer exists. Reports whether anything changed.
func dropDeadBindings(msg *roletypes.RoleMessage, liveRoles map[sharedtypes.RoleID]int) bool {
	changed := false
	for key, b := range msg.Triggers {
		if _, ok := liveRoles[b.RoleID]; !ok {
			delete(msg.Triggers, key)
			changed = true
		}
	}
	for ci := range msg.Categories {
		cat := &msg.Categories[ci]
		kept := cat.Bindings[:0]
		for _, b := range cat.Bindings {
			if _, ok := liveRoles[b.RoleID]; ok {
				kept = append(kept, b)
			} else {
				changed = true
			}
		}
		cat.Bindings = kept
	}
	return changed
}

func (s *RoleMessageService) publishReconcile(ctx context.Context, guildID sharedtypes.GuildID, report ReconcileReport) {
	s.logger.InfoContext(ctx, "Reconcile pass finished",
		attr.ExtractCorrelationID(ctx),
		attr.String("guild_id", string(guildID)),
		attr.String("operation", report.Operation),
		attr.Int("messages_checked", report.MessagesChecked),
		attr.Int("issues_found", len(report.Issues)),
		attr.Int("repaired", report.Repaired),
	)
	s.publish(ctx, roleevents.ReconcileCompletedV1, roleevents.ReconcileCompletedPayloadV1{
		GuildID:         guildID,
		Operation:       report.Operation,
		MessagesChecked: report.MessagesChecked,
		IssuesFound:     len(report.Issues),
		IssuesRepaired:  report.Repaired,
		CompletedAt:     report.CompletedAt,
	})
}
