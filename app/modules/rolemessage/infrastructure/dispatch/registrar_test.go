package roledispatch

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	roledb "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/repositories"
	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

func testRegistrar() *Registrar {
	return NewRegistrar(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func buttonMessage(messageID sharedtypes.MessageID, roleIDs ...sharedtypes.RoleID) *roletypes.RoleMessage {
	triggers := make(map[sharedtypes.TriggerKey]roletypes.Binding, len(roleIDs))
	for _, id := range roleIDs {
		triggers[sharedtypes.TriggerKey(id)] = roletypes.Binding{RoleID: id}
	}
	return &roletypes.RoleMessage{
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: messageID,
		Style:     roletypes.StyleButton,
		Triggers:  triggers,
	}
}

func TestRegistrar_RegisterIsIdempotent(t *testing.T) {
	r := testRegistrar()
	msg := buttonMessage("m1", "r-red", "r-green")

	r.RegisterMessage(msg)
	r.RegisterMessage(msg)
	assert.Equal(t, 2, r.Len())

	id, ok := r.Lookup(ButtonCustomID("r-red", "m1"))
	require.True(t, ok)
	assert.Equal(t, sharedtypes.RoleID("r-red"), id.RoleID)
}

func TestRegistrar_ReRegisterReplacesRoutes(t *testing.T) {
	r := testRegistrar()
	r.RegisterMessage(buttonMessage("m1", "r-red", "r-green"))

	// Binding removed from the document: its route must disappear.
	r.RegisterMessage(buttonMessage("m1", "r-red"))
	assert.Equal(t, 1, r.Len())
	_, ok := r.Lookup(ButtonCustomID("r-green", "m1"))
	assert.False(t, ok)
}

func TestRegistrar_StaleMessageClearsRoutes(t *testing.T) {
	r := testRegistrar()
	msg := buttonMessage("m1", "r-red")
	r.RegisterMessage(msg)
	require.Equal(t, 1, r.Len())

	msg.Stale = true
	r.RegisterMessage(msg)
	assert.Equal(t, 0, r.Len())
}

func TestRegistrar_Unregister(t *testing.T) {
	r := testRegistrar()
	r.RegisterMessage(buttonMessage("m1", "r-red"))
	r.RegisterMessage(buttonMessage("m2", "r-blue"))

	r.UnregisterMessage("g1", "m1")
	assert.Equal(t, 1, r.Len())
	_, ok := r.Lookup(ButtonCustomID("r-blue", "m2"))
	assert.True(t, ok)
}

type staticStore struct {
	msgs map[sharedtypes.GuildID][]*roletypes.RoleMessage
}

func (s *staticStore) Guild(_ context.Context, guildID sharedtypes.GuildID) ([]*roletypes.RoleMessage, error) {
	return s.msgs[guildID], nil
}

func (s *staticStore) Message(context.Context, sharedtypes.GuildID, sharedtypes.MessageID) (*roletypes.RoleMessage, error) {
	return nil, roledb.ErrNotFound
}

func (s *staticStore) Put(context.Context, *roletypes.RoleMessage) error { return nil }

func (s *staticStore) Delete(context.Context, sharedtypes.GuildID, sharedtypes.MessageID) error {
	return nil
}

func TestRegistrar_RegisterAll(t *testing.T) {
	store := &staticStore{msgs: map[sharedtypes.GuildID][]*roletypes.RoleMessage{
		"g1": {buttonMessage("m1", "r-red"), buttonMessage("m2", "r-blue")},
		"g2": {buttonMessage("m3", "r-x", "r-y")},
	}}
	r := testRegistrar()

	err := r.RegisterAll(context.Background(), store, []sharedtypes.GuildID{"g1", "g2"})
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())
}
