package roledb

import (
	"context"
	"errors"

	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

// ErrNotFound indicates the requested role message document does not exist.
var ErrNotFound = errors.New("role message not found")

// Repository is the durable key/value contract for role message documents,
// keyed (guild_id, message_id). Writes are whole-document replacements;
// callers read-modify-write the full document, never individual fields.
//
// Error semantics:
//   - ErrNotFound: document does not exist (Get)
//   - other errors: infrastructure failures (connection, query)
type Repository interface {
	// GetByGuild returns every role message document for a guild.
	GetByGuild(ctx context.Context, guildID sharedtypes.GuildID) ([]*roletypes.RoleMessage, error)

	// Get returns one document, or ErrNotFound.
	Get(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) (*roletypes.RoleMessage, error)

	// Upsert replaces the whole document, inserting if absent.
	Upsert(ctx context.Context, msg *roletypes.RoleMessage) error

	// Delete removes one document. Idempotent.
	Delete(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) error
}

// Store is what the service layer reads and writes. The canonical
// implementation keeps an authoritative in-memory copy over a Repository
// and retries failed persistence on a periodic flush, so a storage outage
// degrades durability, not correctness.
type Store interface {
	Guild(ctx context.Context, guildID sharedtypes.GuildID) ([]*roletypes.RoleMessage, error)
	Message(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) (*roletypes.RoleMessage, error)
	Put(ctx context.Context, msg *roletypes.RoleMessage) error
	Delete(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) error
}
