package roledb

import (
	"context"
	"sync"

	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

// FakeRepository is a programmable in-memory Repository for tests. Any
// Func field left nil falls back to the backing map, so tests only stub
// the calls they care about (usually failure injection).
type FakeRepository struct {
	mu    sync.Mutex
	trace []string
	docs  map[string]*roletypes.RoleMessage

	GetByGuildFunc func(ctx context.Context, guildID sharedtypes.GuildID) ([]*roletypes.RoleMessage, error)
	GetFunc        func(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) (*roletypes.RoleMessage, error)
	UpsertFunc     func(ctx context.Context, msg *roletypes.RoleMessage) error
	DeleteFunc     func(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) error
}

var _ Repository = (*FakeRepository)(nil)

// NewFakeRepository initializes an empty fake.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{docs: make(map[string]*roletypes.RoleMessage)}
}

func fakeKey(guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) string {
	return string(guildID) + "/" + string(messageID)
}

// Trace returns the sequence of repository calls made so far.
func (f *FakeRepository) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeRepository) record(step string) {
	f.mu.Lock()
	f.trace = append(f.trace, step)
	f.mu.Unlock()
}

// Seed stores documents directly, bypassing the trace.
func (f *FakeRepository) Seed(msgs ...*roletypes.RoleMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range msgs {
		f.docs[fakeKey(msg.GuildID, msg.MessageID)] = msg.Clone()
	}
}

// Stored returns the persisted copy of one document, or nil.
func (f *FakeRepository) Stored(guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) *roletypes.RoleMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[fakeKey(guildID, messageID)]; ok {
		return doc.Clone()
	}
	return nil
}

func (f *FakeRepository) GetByGuild(ctx context.Context, guildID sharedtypes.GuildID) ([]*roletypes.RoleMessage, error) {
	f.record("GetByGuild")
	if f.GetByGuildFunc != nil {
		return f.GetByGuildFunc(ctx, guildID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*roletypes.RoleMessage
	for _, doc := range f.docs {
		if doc.GuildID == guildID {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func (f *FakeRepository) Get(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) (*roletypes.RoleMessage, error) {
	f.record("Get")
	if f.GetFunc != nil {
		return f.GetFunc(ctx, guildID, messageID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[fakeKey(guildID, messageID)]; ok {
		return doc.Clone(), nil
	}
	return nil, ErrNotFound
}

func (f *FakeRepository) Upsert(ctx context.Context, msg *roletypes.RoleMessage) error {
	f.record("Upsert")
	if f.UpsertFunc != nil {
		return f.UpsertFunc(ctx, msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[fakeKey(msg.GuildID, msg.MessageID)] = msg.Clone()
	return nil
}

func (f *FakeRepository) Delete(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) error {
	f.record("Delete")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, guildID, messageID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, fakeKey(guildID, messageID))
	return nil
}
