package roleservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	roleevents "github.com/rolewarden/rolewarden/app/events"
	roledb "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/repositories"
	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

// RoleMessageCreated is the success payload for CreateRoleMessage.
type RoleMessageCreated struct {
	MessageID sharedtypes.MessageID
}

// RoleMessageList is the success payload for ListRoleMessages.
type RoleMessageList struct {
	Messages []*roletypes.RoleMessage
}

// ConfigExport is the success payload for ExportConfig: an ExportDocument
// serialized as indented JSON.
type ConfigExport struct {
	JSON []byte
}

// CreateRoleMessage sends a fresh message to the channel and records an
// empty document keyed by the platform-assigned message ID.
func (s *RoleMessageService) CreateRoleMessage(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	channelID sharedtypes.ChannelID,
	style roletypes.Style,
	view roletypes.View,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "CreateRoleMessage", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		msg := &roletypes.RoleMessage{
			SchemaVersion: roletypes.SchemaVersion,
			GuildID:       guildID,
			ChannelID:     channelID,
			Style:         style,
			View:          view,
		}

		messageID, err := s.platform.CreateMessage(ctx, msg)
		if err != nil {
			return RoleOperationResult{}, fmt.Errorf("create platform message: %w", err)
		}
		msg.MessageID = messageID

		if err := s.store.Put(ctx, msg); err != nil {
			return RoleOperationResult{}, err
		}
		s.dispatch.RegisterMessage(msg)

		s.publish(ctx, roleevents.RoleMessageCreatedV1, roleevents.RoleMessageCreatedPayloadV1{
			GuildID:   guildID,
			ChannelID: channelID,
			MessageID: messageID,
			Style:     style,
		})
		return RoleOperationResult{Success: &RoleMessageCreated{MessageID: messageID}}, nil
	})
}

// AddBinding binds a trigger key to a role on a reaction or button message.
// A role may appear at most once per message, regardless of trigger.
func (s *RoleMessageService) AddBinding(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
	trigger sharedtypes.TriggerKey,
	binding roletypes.Binding,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "AddBinding", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		return s.mutateConfig(ctx, guildID, messageID, "binding_added", func(msg *roletypes.RoleMessage) error {
			if msg.Style == roletypes.StyleMenu {
				return fmt.Errorf("binding %s: menu messages take category bindings", trigger)
			}
			if msg.BindsRole(binding.RoleID) {
				return fmt.Errorf("%w: %s", ErrDuplicateRole, binding.RoleID)
			}
			if msg.Triggers == nil {
				msg.Triggers = make(map[sharedtypes.TriggerKey]roletypes.Binding)
			}
			msg.Triggers[trigger] = binding
			return nil
		}, func(ctx context.Context, msg *roletypes.RoleMessage) error {
			if msg.Style == roletypes.StyleReaction {
				return s.platform.AddReaction(ctx, msg.ChannelID, msg.MessageID, trigger)
			}
			return s.platform.SyncMessageView(ctx, msg)
		})
	})
}

// RemoveBinding unbinds a trigger key. Members who hold the role keep it;
// unbinding only stops future activations.
func (s *RoleMessageService) RemoveBinding(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
	trigger sharedtypes.TriggerKey,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "RemoveBinding", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		return s.mutateConfig(ctx, guildID, messageID, "binding_removed", func(msg *roletypes.RoleMessage) error {
			if _, ok := msg.Triggers[trigger]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownTrigger, trigger)
			}
			delete(msg.Triggers, trigger)
			return nil
		}, func(ctx context.Context, msg *roletypes.RoleMessage) error {
			if msg.Style == roletypes.StyleReaction {
				return s.replayReactions(ctx, msg)
			}
			return s.platform.SyncMessageView(ctx, msg)
		})
	})
}

// AddCategory adds an empty category to a menu message. The category ID is
// derived from the name, so two categories cannot share a slug.
func (s *RoleMessageService) AddCategory(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
	name, emoji, description string,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "AddCategory", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		return s.mutateConfig(ctx, guildID, messageID, "category_added", func(msg *roletypes.RoleMessage) error {
			if msg.Style != roletypes.StyleMenu {
				return ErrNotMenuStyle
			}
			id := roletypes.SlugifyCategory(name)
			if _, ok := msg.Category(id); ok {
				return fmt.Errorf("%w: %s", ErrCategoryExists, id)
			}
			msg.Categories = append(msg.Categories, roletypes.Category{
				ID:          id,
				Name:        name,
				Emoji:       emoji,
				Description: description,
			})
			return nil
		}, s.platform.SyncMessageView)
	})
}

// RemoveCategory drops a category and every binding inside it.
func (s *RoleMessageService) RemoveCategory(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
	categoryID sharedtypes.CategoryID,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "RemoveCategory", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		return s.mutateConfig(ctx, guildID, messageID, "category_removed", func(msg *roletypes.RoleMessage) error {
			for i, cat := range msg.Categories {
				if cat.ID == categoryID {
					msg.Categories = append(msg.Categories[:i], msg.Categories[i+1:]...)
					return nil
				}
			}
			return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
		}, s.platform.SyncMessageView)
	})
}

// AddCategoryBinding appends a role binding to a menu category.
func (s *RoleMessageService) AddCategoryBinding(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
	categoryID sharedtypes.CategoryID,
	binding roletypes.Binding,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "AddCategoryBinding", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		return s.mutateConfig(ctx, guildID, messageID, "category_binding_added", func(msg *roletypes.RoleMessage) error {
			if msg.Style != roletypes.StyleMenu {
				return ErrNotMenuStyle
			}
			if msg.BindsRole(binding.RoleID) {
				return fmt.Errorf("%w: %s", ErrDuplicateRole, binding.RoleID)
			}
			cat, ok := msg.Category(categoryID)
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
			}
			cat.Bindings = append(cat.Bindings, binding)
			return nil
		}, s.platform.SyncMessageView)
	})
}

// RemoveCategoryBinding removes a role binding from whichever category
// holds it. Bound roles are unique per message, so role ID is enough.
func (s *RoleMessageService) RemoveCategoryBinding(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
	roleID sharedtypes.RoleID,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "RemoveCategoryBinding", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		return s.mutateConfig(ctx, guildID, messageID, "category_binding_removed", func(msg *roletypes.RoleMessage) error {
			if msg.Style != roletypes.StyleMenu {
				return ErrNotMenuStyle
			}
			for ci := range msg.Categories {
				cat := &msg.Categories[ci]
				for bi, b := range cat.Bindings {
					if b.RoleID == roleID {
						cat.Bindings = append(cat.Bindings[:bi], cat.Bindings[bi+1:]...)
						return nil
					}
				}
			}
			return fmt.Errorf("%w: role %s not bound", ErrUnknownTrigger, roleID)
		}, s.platform.SyncMessageView)
	})
}

// UpdateSettings adjusts the activation gates. A nil pointer leaves the
// setting alone; maxRoles <= 0 clears the cap; an empty requiredRole
// clears the required list, a role ID toggles its membership.
func (s *RoleMessageService) UpdateSettings(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
	maxRoles *int,
	requiredRole *sharedtypes.RoleID,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "UpdateSettings", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		return s.mutateConfig(ctx, guildID, messageID, "settings_updated", func(msg *roletypes.RoleMessage) error {
			if maxRoles != nil {
				if *maxRoles <= 0 {
					msg.Settings.MaxRoles = nil
				} else {
					v := *maxRoles
					msg.Settings.MaxRoles = &v
				}
			}
			if requiredRole != nil {
				switch {
				case *requiredRole == "":
					msg.Settings.RequiredRoles = nil
				default:
					msg.Settings.RequiredRoles = toggleRole(msg.Settings.RequiredRoles, *requiredRole)
				}
			}
			return nil
		}, nil)
	})
}

// DeleteRoleMessage removes the configuration entirely. The platform
// message is left in place; deleting it is the operator's call.
func (s *RoleMessageService) DeleteRoleMessage(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "DeleteRoleMessage", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		if _, err := s.store.Message(ctx, guildID, messageID); err != nil {
			if errors.Is(err, roledb.ErrNotFound) {
				return RoleOperationResult{}, ErrRoleMessageMissing
			}
			return RoleOperationResult{}, err
		}
		if err := s.store.Delete(ctx, guildID, messageID); err != nil {
			return RoleOperationResult{}, err
		}
		s.dispatch.UnregisterMessage(guildID, messageID)

		s.publish(ctx, roleevents.RoleMessageDeletedV1, roleevents.RoleMessageDeletedPayloadV1{
			GuildID:   guildID,
			MessageID: messageID,
		})
		return RoleOperationResult{Success: &roleevents.RoleMessageDeletedPayloadV1{
			GuildID:   guildID,
			MessageID: messageID,
		}}, nil
	})
}

// ListRoleMessages returns every document for the guild, stale included.
func (s *RoleMessageService) ListRoleMessages(
	ctx context.Context,
	guildID sharedtypes.GuildID,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "ListRoleMessages", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		msgs, err := s.store.Guild(ctx, guildID)
		if err != nil {
			return RoleOperationResult{}, err
		}
		return RoleOperationResult{Success: &RoleMessageList{Messages: msgs}}, nil
	})
}

// ExportDocument is the shape of an ExportConfig dump.
type ExportDocument struct {
	GuildID    sharedtypes.GuildID      `json:"guild_id"`
	ExportedAt time.Time                `json:"exported_at"`
	Messages   []*roletypes.RoleMessage `json:"messages"`
}

// ExportConfig serializes the guild's documents for backup or migration.
func (s *RoleMessageService) ExportConfig(
	ctx context.Context,
	guildID sharedtypes.GuildID,
) (RoleOperationResult, error) {
	return s.withTelemetry(ctx, "ExportConfig", guildID, func(ctx context.Context) (RoleOperationResult, error) {
		msgs, err := s.store.Guild(ctx, guildID)
		if err != nil {
			return RoleOperationResult{}, err
		}
		doc := ExportDocument{
			GuildID:    guildID,
			ExportedAt: time.Now().UTC(),
			Messages:   msgs,
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return RoleOperationResult{}, fmt.Errorf("marshal export: %w", err)
		}
		return RoleOperationResult{Success: &ConfigExport{JSON: data}}, nil
	})
}

type configMutator func(msg *roletypes.RoleMessage) error

type viewSyncer func(ctx context.Context, msg *roletypes.RoleMessage) error

// mutateConfig is the shared edit path: load, mutate, persist, re-register
// dispatch identities, best-effort view sync, publish the update event.
// View sync failures are logged by the platform adapter and surfaced in
// the returned error; the stored document is already updated.
func (s *RoleMessageService) mutateConfig(
	ctx context.Context,
	guildID sharedtypes.GuildID,
	messageID sharedtypes.MessageID,
	change string,
	mutate configMutator,
	sync viewSyncer,
) (RoleOperationResult, error) {
	msg, err := s.store.Message(ctx, guildID, messageID)
	if err != nil {
		if errors.Is(err, roledb.ErrNotFound) {
			return RoleOperationResult{}, ErrRoleMessageMissing
		}
		return RoleOperationResult{}, err
	}
	if !msg.Live() {
		return RoleOperationResult{}, ErrRoleMessageStale
	}

	if err := mutate(msg); err != nil {
		return RoleOperationResult{}, err
	}
	if err := s.store.Put(ctx, msg); err != nil {
		return RoleOperationResult{}, err
	}
	s.dispatch.RegisterMessage(msg)

	if sync != nil {
		if err := sync(ctx, msg); err != nil {
			return RoleOperationResult{}, fmt.Errorf("sync message view: %w", err)
		}
	}

	s.publish(ctx, roleevents.RoleMessageUpdatedV1, roleevents.RoleMessageUpdatedPayloadV1{
		GuildID:   guildID,
		MessageID: messageID,
		Change:    change,
	})
	return RoleOperationResult{Success: &roleevents.RoleMessageUpdatedPayloadV1{
		GuildID:   guildID,
		MessageID: messageID,
		Change:    change,
	}}, nil
}

func toggleRole(roles []sharedtypes.RoleID, roleID sharedtypes.RoleID) []sharedtypes.RoleID {
	for i, r := range roles {
		if r == roleID {
			return append(roles[:i], roles[i+1:]...)
		}
	}
	return append(roles, roleID)
}
