package roledb

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
	"github.com/rolewarden/rolewarden/internal/observability/attr"
)

type docKey struct {
	guildID   sharedtypes.GuildID
	messageID sharedtypes.MessageID
}

// CachedStore keeps the authoritative copy of every role message document
// in memory, writing through to a Repository. A failed write leaves the
// in-memory document current and the key dirty; the periodic flush retries
// until the repository accepts it. Reads hand out deep copies so callers
// can read-modify-write without holding the store lock.
//
// Every write bumps the key's generation. Repository calls run outside
// the mutex, so a write settles its dirty flag only if the generation is
// still its own; a write that lost the race may have clobbered a newer
// repository row and leaves the key queued for the next flush instead.
type CachedStore struct {
	repo   Repository
	logger *slog.Logger

	mu      sync.Mutex
	loaded  map[sharedtypes.GuildID]bool
	docs    map[docKey]*roletypes.RoleMessage
	dirty   map[docKey]bool
	deleted map[docKey]bool
	gen     map[docKey]uint64
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore builds a store over repo. Guild documents are loaded
// lazily on first access.
func NewCachedStore(repo Repository, logger *slog.Logger) *CachedStore {
	return &CachedStore{
		repo:    repo,
		logger:  logger,
		loaded:  make(map[sharedtypes.GuildID]bool),
		docs:    make(map[docKey]*roletypes.RoleMessage),
		dirty:   make(map[docKey]bool),
		deleted: make(map[docKey]bool),
		gen:     make(map[docKey]uint64),
	}
}

func (s *CachedStore) ensureLoaded(ctx context.Context, guildID sharedtypes.GuildID) error {
	if s.loaded[guildID] {
		return nil
	}
	msgs, err := s.repo.GetByGuild(ctx, guildID)
	if err != nil {
		return fmt.Errorf("load guild %s: %w", guildID, err)
	}
	for _, msg := range msgs {
		key := docKey{msg.GuildID, msg.MessageID}
		// A dirty in-memory document outranks the stored one.
		if s.dirty[key] || s.deleted[key] {
			continue
		}
		s.docs[key] = msg
	}
	s.loaded[guildID] = true
	return nil
}

func (s *CachedStore) Guild(ctx context.Context, guildID sharedtypes.GuildID) ([]*roletypes.RoleMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx, guildID); err != nil {
		return nil, err
	}
	var out []*roletypes.RoleMessage
	for key, doc := range s.docs {
		if key.guildID == guildID {
			out = append(out, doc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}

func (s *CachedStore) Message(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) (*roletypes.RoleMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx, guildID); err != nil {
		return nil, err
	}
	doc, ok := s.docs[docKey{guildID, messageID}]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

// Put replaces the whole document. The in-memory copy is updated
// unconditionally; a repository error is returned for reporting but the
// write stays queued for the next flush.
func (s *CachedStore) Put(ctx context.Context, msg *roletypes.RoleMessage) error {
	key := docKey{msg.GuildID, msg.MessageID}

	s.mu.Lock()
	s.gen[key]++
	gen := s.gen[key]
	s.docs[key] = msg.Clone()
	delete(s.deleted, key)
	s.dirty[key] = true
	s.mu.Unlock()

	if err := s.repo.Upsert(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Role message persistence failed, memory remains authoritative",
			attr.String("guild_id", string(msg.GuildID)),
			attr.String("message_id", string(msg.MessageID)),
			attr.Error(err),
		)
		return err
	}

	s.settleWrite(key, gen)
	return nil
}

// settleWrite clears the dirty flag after a successful upsert, but only if
// no newer write raced it. A stale write may have overwritten a newer
// repository row, so the key is re-queued for the next flush. Reports
// whether the key settled clean.
func (s *CachedStore) settleWrite(key docKey, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[key] == gen {
		delete(s.dirty, key)
		return true
	}
	if _, ok := s.docs[key]; ok {
		s.dirty[key] = true
	}
	return false
}

// settleDelete is settleWrite's counterpart for tombstones. A stale delete
// may have removed a row a newer Put just persisted; the surviving
// document is re-queued instead.
func (s *CachedStore) settleDelete(key docKey, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[key] == gen {
		delete(s.deleted, key)
		return true
	}
	if _, ok := s.docs[key]; ok {
		s.dirty[key] = true
	}
	return false
}

// Delete removes the document, tombstoning it so a failed repository
// delete is retried by the flush.
func (s *CachedStore) Delete(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) error {
	key := docKey{guildID, messageID}

	s.mu.Lock()
	s.gen[key]++
	gen := s.gen[key]
	delete(s.docs, key)
	delete(s.dirty, key)
	s.deleted[key] = true
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, guildID, messageID); err != nil {
		s.logger.WarnContext(ctx, "Role message delete failed, tombstone retained",
			attr.String("guild_id", string(guildID)),
			attr.String("message_id", string(messageID)),
			attr.Error(err),
		)
		return err
	}

	s.settleDelete(key, gen)
	return nil
}

// Flush retries every dirty write and tombstoned delete. Returns the number
// of keys still unflushed.
func (s *CachedStore) Flush(ctx context.Context) int {
	type pendingWrite struct {
		doc *roletypes.RoleMessage
		gen uint64
	}
	type pendingDelete struct {
		key docKey
		gen uint64
	}

	s.mu.Lock()
	pending := make([]pendingWrite, 0, len(s.dirty))
	for key := range s.dirty {
		if doc, ok := s.docs[key]; ok {
			pending = append(pending, pendingWrite{doc: doc.Clone(), gen: s.gen[key]})
		}
	}
	tombstones := make([]pendingDelete, 0, len(s.deleted))
	for key := range s.deleted {
		tombstones = append(tombstones, pendingDelete{key: key, gen: s.gen[key]})
	}
	s.mu.Unlock()

	remaining := 0
	for _, p := range pending {
		if err := s.repo.Upsert(ctx, p.doc); err != nil {
			remaining++
			continue
		}
		if !s.settleWrite(docKey{p.doc.GuildID, p.doc.MessageID}, p.gen) {
			remaining++
		}
	}
	for _, p := range tombstones {
		if err := s.repo.Delete(ctx, p.key.guildID, p.key.messageID); err != nil {
			remaining++
			continue
		}
		if !s.settleDelete(p.key, p.gen) {
			remaining++
		}
	}
	return remaining
}

// Run flushes on the given interval until ctx is done, independent of the
// request path.
func (s *CachedStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// Last chance to drain before shutdown.
			s.Flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			if remaining := s.Flush(ctx); remaining > 0 {
				s.logger.WarnContext(ctx, "Periodic flush left unpersisted documents",
					attr.Int("remaining", remaining),
				)
			}
		}
	}
}
