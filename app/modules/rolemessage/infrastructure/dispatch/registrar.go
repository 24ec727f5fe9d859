package roledispatch

import (
	"context"
	"log/slog"
	"sync"

	roledb "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/repositories"
	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
	"github.com/rolewarden/rolewarden/internal/observability/attr"
)

// Registrar is the in-memory routing table from component custom IDs to
// their binding identities. The gateway consults it on every interaction;
// the service re-registers a message after each configuration change, so
// registration is idempotent per message.
type Registrar struct {
	logger *slog.Logger

	mu        sync.RWMutex
	routes    map[string]Identity
	byMessage map[sharedtypes.MessageID][]string
}

func NewRegistrar(logger *slog.Logger) *Registrar {
	return &Registrar{
		logger:    logger,
		routes:    make(map[string]Identity),
		byMessage: make(map[sharedtypes.MessageID][]string),
	}
}

// RegisterMessage replaces the message's routes with those its document
// currently implies. Stale documents register nothing, which also clears
// any routes left over from before the message went stale.
func (r *Registrar) RegisterMessage(msg *roletypes.RoleMessage) {
	var ids []Identity
	if msg.Live() {
		ids = DeriveIdentities(msg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, customID := range r.byMessage[msg.MessageID] {
		delete(r.routes, customID)
	}
	delete(r.byMessage, msg.MessageID)

	if len(ids) == 0 {
		return
	}
	customIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		r.routes[id.CustomID] = id
		customIDs = append(customIDs, id.CustomID)
	}
	r.byMessage[msg.MessageID] = customIDs
}

// UnregisterMessage drops every route for the message.
func (r *Registrar) UnregisterMessage(_ sharedtypes.GuildID, messageID sharedtypes.MessageID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, customID := range r.byMessage[messageID] {
		delete(r.routes, customID)
	}
	delete(r.byMessage, messageID)
}

// Lookup resolves an incoming interaction's custom ID.
func (r *Registrar) Lookup(customID string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.routes[customID]
	return id, ok
}

// Len reports the number of registered routes.
func (r *Registrar) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// RegisterAll seeds the table from the store for the given guilds. Called
// once at startup after the gateway knows which guilds it serves.
func (r *Registrar) RegisterAll(ctx context.Context, store roledb.Store, guildIDs []sharedtypes.GuildID) error {
	total := 0
	for _, guildID := range guildIDs {
		msgs, err := store.Guild(ctx, guildID)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			r.RegisterMessage(msg)
		}
		total += len(msgs)
	}
	r.logger.InfoContext(ctx, "Dispatch routes registered",
		attr.Int("guilds", len(guildIDs)),
		attr.Int("messages", total),
		attr.Int("routes", r.Len()),
	)
	return nil
}
