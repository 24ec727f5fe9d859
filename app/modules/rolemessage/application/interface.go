package roleservice

import (
	"context"
	"errors"

	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

// Platform errors, mapped from whatever the adapter's client returns.
// Role mutation failures are caught per mutation and never abort siblings.
var (
	ErrForbidden        = errors.New("platform refused the operation")
	ErrPlatformNotFound = errors.New("platform entity not found")
)

// Platform is the engine's view of the chat platform. The discord adapter
// implements it; tests use the programmable fake.
type Platform interface {
	// MemberRoles returns the member's live role set. Resolution always
	// starts from a fresh fetch, never a cached copy.
	MemberRoles(ctx context.Context, guildID sharedtypes.GuildID, memberID sharedtypes.MemberID) ([]sharedtypes.RoleID, error)

	// AddRole / RemoveRole mutate one role. Both are idempotent on the
	// platform side; failures wrap ErrForbidden or ErrPlatformNotFound.
	AddRole(ctx context.Context, guildID sharedtypes.GuildID, memberID sharedtypes.MemberID, roleID sharedtypes.RoleID) error
	RemoveRole(ctx context.Context, guildID sharedtypes.GuildID, memberID sharedtypes.MemberID, roleID sharedtypes.RoleID) error

	// GuildRoles returns every live role ID mapped to its hierarchy
	// position. BotRolePosition is the bot's own top position; roles at or
	// above it cannot be managed.
	GuildRoles(ctx context.Context, guildID sharedtypes.GuildID) (map[sharedtypes.RoleID]int, error)
	BotRolePosition(ctx context.Context, guildID sharedtypes.GuildID) (int, error)

	// MessageExists reports whether the platform message still exists.
	MessageExists(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID) (bool, error)

	// CreateMessage renders and sends a new message for the document in
	// its channel, returning the platform-assigned message ID.
	CreateMessage(ctx context.Context, msg *roletypes.RoleMessage) (sharedtypes.MessageID, error)

	// SyncMessageView re-renders the existing message (embed plus button or
	// menu components) to match the document.
	SyncMessageView(ctx context.Context, msg *roletypes.RoleMessage) error

	// Reaction management for reaction-style messages.
	AddReaction(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID, emoji sharedtypes.TriggerKey) error
	RemoveMemberReaction(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID, emoji sharedtypes.TriggerKey, memberID sharedtypes.MemberID) error
	ClearReactions(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID) error
}

// Dispatch re-registers interactive-component routing. The registrar
// implements it; the service notifies it whenever configuration changes
// what components exist.
type Dispatch interface {
	RegisterMessage(msg *roletypes.RoleMessage)
	UnregisterMessage(guildID sharedtypes.GuildID, messageID sharedtypes.MessageID)
}

// RoleOperationResult is the standard service return: at most one of
// Success or Failure is set. Failure carries a domain rejection payload
// (not an error); Error mirrors the returned error for handler plumbing.
type RoleOperationResult struct {
	Success any
	Failure any
	Error   error
}

// Service is the engine facade: every external collaborator (gateway
// adapter, dispatch closures, admin commands) goes through it.
type Service interface {
	// Activation.
	ActivateTrigger(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID, trigger sharedtypes.TriggerKey, memberID sharedtypes.MemberID, kind ActivationKind) (RoleOperationResult, error)
	ApplyMenuSelection(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID, categoryID sharedtypes.CategoryID, memberID sharedtypes.MemberID, desired []sharedtypes.RoleID) (RoleOperationResult, error)

	// Configuration.
	CreateRoleMessage(ctx context.Context, guildID sharedtypes.GuildID, channelID sharedtypes.ChannelID, style roletypes.Style, view roletypes.View) (RoleOperationResult, error)
	AddBinding(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID, trigger sharedtypes.TriggerKey, binding roletypes.Binding) (RoleOperationResult, error)
	RemoveBinding(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID, trigger sharedtypes.TriggerKey) (RoleOperationResult, error)
	AddCategory(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID, name, emoji, description string) (RoleOperationResult, error)
	RemoveCategory(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID, categoryID sharedtypes.CategoryID) (RoleOperationResult, error)
	AddCategoryBinding(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID, categoryID sharedtypes.CategoryID, binding roletypes.Binding) (RoleOperationResult, error)
	RemoveCategoryBinding(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID, roleID sharedtypes.RoleID) (RoleOperationResult, error)
	UpdateSettings(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID, maxRoles *int, requiredRole *sharedtypes.RoleID) (RoleOperationResult, error)
	DeleteRoleMessage(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) (RoleOperationResult, error)
	ListRoleMessages(ctx context.Context, guildID sharedtypes.GuildID) (RoleOperationResult, error)
	ExportConfig(ctx context.Context, guildID sharedtypes.GuildID) (RoleOperationResult, error)

	// Reconciliation.
	Verify(ctx context.Context, guildID sharedtypes.GuildID) (RoleOperationResult, error)
	Cleanup(ctx context.Context, guildID sharedtypes.GuildID) (RoleOperationResult, error)
	Rebuild(ctx context.Context, guildID sharedtypes.GuildID) (RoleOperationResult, error)
	CloneRoleMessage(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID, targetChannelID sharedtypes.ChannelID) (RoleOperationResult, error)
}
