package roleservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace/noop"

	roledb "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/repositories"
	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
	rolemetrics "github.com/rolewarden/rolewarden/internal/observability/metrics/rolemessage"
)

// newTestService wires a service against the given fakes with silent
// observability.
func newTestService(store roledb.Store, platform Platform, dispatch Dispatch) *RoleMessageService {
	svc := NewRoleMessageService(
		store,
		platform,
		dispatch,
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		rolemetrics.NoOpMetrics{},
		noop.NewTracerProvider().Tracer("test"),
	)
	svc.SetReactionPace(0)
	return svc
}

// ------------------------
// Fake Store
// ------------------------

// FakeStore is an in-memory roledb.Store with programmable overrides.
type FakeStore struct {
	trace []string

	docs map[sharedtypes.GuildID]map[sharedtypes.MessageID]*roletypes.RoleMessage

	GuildFunc   func(ctx context.Context, guildID sharedtypes.GuildID) ([]*roletypes.RoleMessage, error)
	MessageFunc func(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) (*roletypes.RoleMessage, error)
	PutFunc     func(ctx context.Context, msg *roletypes.RoleMessage) error
	DeleteFunc  func(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		docs: make(map[sharedtypes.GuildID]map[sharedtypes.MessageID]*roletypes.RoleMessage),
	}
}

func (f *FakeStore) record(step string) {
	f.trace = append(f.trace, step)
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakeStore) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Seed stores a document without recording a trace entry.
func (f *FakeStore) Seed(msg *roletypes.RoleMessage) {
	if f.docs[msg.GuildID] == nil {
		f.docs[msg.GuildID] = make(map[sharedtypes.MessageID]*roletypes.RoleMessage)
	}
	f.docs[msg.GuildID][msg.MessageID] = msg.Clone()
}

// Stored returns the stored document, or nil.
func (f *FakeStore) Stored(guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) *roletypes.RoleMessage {
	return f.docs[guildID][messageID]
}

func (f *FakeStore) Guild(ctx context.Context, guildID sharedtypes.GuildID) ([]*roletypes.RoleMessage, error) {
	f.record("Guild")
	if f.GuildFunc != nil {
		return f.GuildFunc(ctx, guildID)
	}
	var out []*roletypes.RoleMessage
	for _, msg := range f.docs[guildID] {
		out = append(out, msg.Clone())
	}
	return out, nil
}

func (f *FakeStore) Message(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) (*roletypes.RoleMessage, error) {
	f.record("Message")
	if f.MessageFunc != nil {
		return f.MessageFunc(ctx, guildID, messageID)
	}
	msg, ok := f.docs[guildID][messageID]
	if !ok {
		return nil, roledb.ErrNotFound
	}
	return msg.Clone(), nil
}

func (f *FakeStore) Put(ctx context.Context, msg *roletypes.RoleMessage) error {
	f.record("Put")
	if f.PutFunc != nil {
		return f.PutFunc(ctx, msg)
	}
	f.Seed(msg)
	return nil
}

func (f *FakeStore) Delete(ctx context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) error {
	f.record("Delete")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, guildID, messageID)
	}
	delete(f.docs[guildID], messageID)
	return nil
}

// ------------------------
// Fake Platform
// ------------------------

// FakePlatform is a programmable stub for the Platform port. Defaults
// simulate a healthy guild where every call succeeds.
type FakePlatform struct {
	trace []string

	Members   map[sharedtypes.MemberID][]sharedtypes.RoleID
	Roles     map[sharedtypes.RoleID]int
	BotPos    int
	Messages  map[sharedtypes.MessageID]bool
	NextID    sharedtypes.MessageID
	Reactions map[sharedtypes.MessageID][]sharedtypes.TriggerKey

	AddRoleFunc              func(ctx context.Context, guildID sharedtypes.GuildID, memberID sharedtypes.MemberID, roleID sharedtypes.RoleID) error
	RemoveRoleFunc           func(ctx context.Context, guildID sharedtypes.GuildID, memberID sharedtypes.MemberID, roleID sharedtypes.RoleID) error
	SyncViewFunc             func(ctx context.Context, msg *roletypes.RoleMessage) error
	RemoveMemberReactionFunc func(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID, emoji sharedtypes.TriggerKey, memberID sharedtypes.MemberID) error
}

func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		Members:   make(map[sharedtypes.MemberID][]sharedtypes.RoleID),
		Roles:     make(map[sharedtypes.RoleID]int),
		BotPos:    100,
		Messages:  make(map[sharedtypes.MessageID]bool),
		NextID:    "created-1",
		Reactions: make(map[sharedtypes.MessageID][]sharedtypes.TriggerKey),
	}
}

func (f *FakePlatform) record(step string) {
	f.trace = append(f.trace, step)
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakePlatform) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakePlatform) MemberRoles(_ context.Context, _ sharedtypes.GuildID, memberID sharedtypes.MemberID) ([]sharedtypes.RoleID, error) {
	f.record("MemberRoles")
	return f.Members[memberID], nil
}

func (f *FakePlatform) AddRole(ctx context.Context, guildID sharedtypes.GuildID, memberID sharedtypes.MemberID, roleID sharedtypes.RoleID) error {
	f.record(fmt.Sprintf("AddRole(%s)", roleID))
	if f.AddRoleFunc != nil {
		return f.AddRoleFunc(ctx, guildID, memberID, roleID)
	}
	f.Members[memberID] = append(f.Members[memberID], roleID)
	return nil
}

func (f *FakePlatform) RemoveRole(ctx context.Context, guildID sharedtypes.GuildID, memberID sharedtypes.MemberID, roleID sharedtypes.RoleID) error {
	f.record(fmt.Sprintf("RemoveRole(%s)", roleID))
	if f.RemoveRoleFunc != nil {
		return f.RemoveRoleFunc(ctx, guildID, memberID, roleID)
	}
	kept := f.Members[memberID][:0]
	for _, r := range f.Members[memberID] {
		if r != roleID {
			kept = append(kept, r)
		}
	}
	f.Members[memberID] = kept
	return nil
}

func (f *FakePlatform) GuildRoles(context.Context, sharedtypes.GuildID) (map[sharedtypes.RoleID]int, error) {
	f.record("GuildRoles")
	return f.Roles, nil
}

func (f *FakePlatform) BotRolePosition(context.Context, sharedtypes.GuildID) (int, error) {
	f.record("BotRolePosition")
	return f.BotPos, nil
}

func (f *FakePlatform) MessageExists(_ context.Context, _ sharedtypes.ChannelID, messageID sharedtypes.MessageID) (bool, error) {
	f.record("MessageExists")
	return f.Messages[messageID], nil
}

func (f *FakePlatform) CreateMessage(_ context.Context, msg *roletypes.RoleMessage) (sharedtypes.MessageID, error) {
	f.record("CreateMessage")
	id := f.NextID
	f.Messages[id] = true
	return id, nil
}

func (f *FakePlatform) SyncMessageView(ctx context.Context, msg *roletypes.RoleMessage) error {
	f.record("SyncMessageView")
	if f.SyncViewFunc != nil {
		return f.SyncViewFunc(ctx, msg)
	}
	return nil
}

func (f *FakePlatform) AddReaction(_ context.Context, _ sharedtypes.ChannelID, messageID sharedtypes.MessageID, emoji sharedtypes.TriggerKey) error {
	f.record(fmt.Sprintf("AddReaction(%s)", emoji))
	f.Reactions[messageID] = append(f.Reactions[messageID], emoji)
	return nil
}

func (f *FakePlatform) RemoveMemberReaction(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID, emoji sharedtypes.TriggerKey, memberID sharedtypes.MemberID) error {
	f.record(fmt.Sprintf("RemoveMemberReaction(%s)", emoji))
	if f.RemoveMemberReactionFunc != nil {
		return f.RemoveMemberReactionFunc(ctx, channelID, messageID, emoji, memberID)
	}
	return nil
}

func (f *FakePlatform) ClearReactions(_ context.Context, _ sharedtypes.ChannelID, messageID sharedtypes.MessageID) error {
	f.record("ClearReactions")
	f.Reactions[messageID] = nil
	return nil
}

// ------------------------
// Fake Dispatch
// ------------------------

// FakeDispatch records register/unregister calls.
type FakeDispatch struct {
	Registered   []sharedtypes.MessageID
	Unregistered []sharedtypes.MessageID
}

func (f *FakeDispatch) RegisterMessage(msg *roletypes.RoleMessage) {
	f.Registered = append(f.Registered, msg.MessageID)
}

func (f *FakeDispatch) UnregisterMessage(_ sharedtypes.GuildID, messageID sharedtypes.MessageID) {
	f.Unregistered = append(f.Unregistered, messageID)
}
