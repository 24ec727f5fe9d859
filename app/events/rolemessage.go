package roleevents

import (
	"time"

	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

// Topic constants, versioned so payload changes can ship side by side.
const (
	RolesAppliedV1        = "rolemessage.roles.applied.v1"
	ActivationRejectedV1  = "rolemessage.activation.rejected.v1"
	RoleMessageCreatedV1  = "rolemessage.created.v1"
	RoleMessageUpdatedV1  = "rolemessage.updated.v1"
	RoleMessageDeletedV1  = "rolemessage.deleted.v1"
	ReconcileCompletedV1  = "rolemessage.reconcile.completed.v1"
)

// RoleMutationFailure records one role mutation the platform refused.
// Sibling mutations are unaffected; the failure list is reporting only.
type RoleMutationFailure struct {
	RoleID sharedtypes.RoleID `json:"role_id"`
	Op     string             `json:"op"` // "add" or "remove"
	Reason string             `json:"reason"`
}

// RolesAppliedPayloadV1 is published after an accepted activation has had
// its mutation plan issued against the platform.
type RolesAppliedPayloadV1 struct {
	GuildID   sharedtypes.GuildID   `json:"guild_id"`
	MessageID sharedtypes.MessageID `json:"message_id"`
	MemberID  sharedtypes.MemberID  `json:"member_id"`
	Added     []sharedtypes.RoleID  `json:"added,omitempty"`
	Removed   []sharedtypes.RoleID  `json:"removed,omitempty"`
	Failures  []RoleMutationFailure `json:"failures,omitempty"`
}

// ActivationRejectedPayloadV1 is published when a gate check turned an
// activation away before any platform call.
type ActivationRejectedPayloadV1 struct {
	GuildID   sharedtypes.GuildID    `json:"guild_id"`
	MessageID sharedtypes.MessageID  `json:"message_id"`
	MemberID  sharedtypes.MemberID   `json:"member_id"`
	Trigger   sharedtypes.TriggerKey `json:"trigger,omitempty"`
	Reason    string                 `json:"reason"`
}

// RoleMessageCreatedPayloadV1 announces a newly configured role message.
type RoleMessageCreatedPayloadV1 struct {
	GuildID   sharedtypes.GuildID   `json:"guild_id"`
	ChannelID sharedtypes.ChannelID `json:"channel_id"`
	MessageID sharedtypes.MessageID `json:"message_id"`
	Style     roletypes.Style       `json:"style"`
}

// RoleMessageUpdatedPayloadV1 announces a configuration change (binding or
// category edits, settings changes).
type RoleMessageUpdatedPayloadV1 struct {
	GuildID   sharedtypes.GuildID   `json:"guild_id"`
	MessageID sharedtypes.MessageID `json:"message_id"`
	Change    string                `json:"change"`
}

// RoleMessageDeletedPayloadV1 announces removal of a role message config.
type RoleMessageDeletedPayloadV1 struct {
	GuildID   sharedtypes.GuildID   `json:"guild_id"`
	MessageID sharedtypes.MessageID `json:"message_id"`
}

// ReconcileCompletedPayloadV1 summarizes a verify/cleanup/rebuild pass.
type ReconcileCompletedPayloadV1 struct {
	GuildID         sharedtypes.GuildID `json:"guild_id"`
	Operation       string              `json:"operation"`
	MessagesChecked int                 `json:"messages_checked"`
	IssuesFound     int                 `json:"issues_found"`
	IssuesRepaired  int                 `json:"issues_repaired"`
	CompletedAt     time.Time           `json:"completed_at"`
}
