package discord

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	roledispatch "github.com/rolewarden/rolewarden/app/modules/rolemessage/infrastructure/dispatch"
	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

func testGateway() *Gateway {
	return &Gateway{
		registrar: roledispatch.NewRegistrar(slog.New(slog.NewTextHandler(io.Discard, nil))),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestResolveComponent_RegisteredRouteWins(t *testing.T) {
	g := testGateway()
	g.registrar.RegisterMessage(&roletypes.RoleMessage{
		SchemaVersion: roletypes.SchemaVersion,
		GuildID:       "g1",
		MessageID:     "m1",
		Style:         roletypes.StyleButton,
		Triggers: map[sharedtypes.TriggerKey]roletypes.Binding{
			"r-red": {RoleID: "r-red"},
		},
	})

	identity, ok := g.resolveComponent("role_r-red_m1")
	require.True(t, ok)
	assert.Equal(t, roledispatch.KindButton, identity.Kind)
	// Registered routes carry the guild, unlike the parsed fallback.
	assert.Equal(t, sharedtypes.GuildID("g1"), identity.GuildID)
	assert.Equal(t, sharedtypes.MessageID("m1"), identity.MessageID)
	assert.Equal(t, sharedtypes.RoleID("r-red"), identity.RoleID)
}

func TestResolveComponent_FallsBackToWireFormat(t *testing.T) {
	g := testGateway()

	identity, ok := g.resolveComponent("role_123456_789012")
	require.True(t, ok)
	assert.Equal(t, roledispatch.KindButton, identity.Kind)
	assert.Equal(t, sharedtypes.RoleID("123456"), identity.RoleID)
	assert.Equal(t, sharedtypes.MessageID("789012"), identity.MessageID)

	identity, ok = g.resolveComponent("menu_789012_color_roles")
	require.True(t, ok)
	assert.Equal(t, roledispatch.KindMenu, identity.Kind)
	assert.Equal(t, sharedtypes.CategoryID("color_roles"), identity.CategoryID)
}

func TestResolveComponent_UnknownCustomID(t *testing.T) {
	g := testGateway()

	_, ok := g.resolveComponent("giveaway_entry")
	assert.False(t, ok)
	_, ok = g.resolveComponent("role_")
	assert.False(t, ok)
}
