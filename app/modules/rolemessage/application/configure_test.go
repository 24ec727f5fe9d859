package roleservice

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

func TestCreateRoleMessage(t *testing.T) {
	store := NewFakeStore()
	platform := NewFakePlatform()
	platform.NextID = "new-msg"
	dispatch := &FakeDispatch{}
	svc := newTestService(store, platform, dispatch)

	result, err := svc.CreateRoleMessage(context.Background(), "guild-1", "chan-1", roletypes.StyleButton, roletypes.View{Title: "Pick your roles"})
	require.NoError(t, err)

	created, ok := result.Success.(*RoleMessageCreated)
	require.True(t, ok)
	assert.Equal(t, sharedtypes.MessageID("new-msg"), created.MessageID)

	stored := store.Stored("guild-1", "new-msg")
	require.NotNil(t, stored)
	assert.Equal(t, roletypes.StyleButton, stored.Style)
	assert.Equal(t, "Pick your roles", stored.View.Title)
	assert.Equal(t, []sharedtypes.MessageID{"new-msg"}, dispatch.Registered)
}

func TestAddBinding(t *testing.T) {
	store := NewFakeStore()
	platform := NewFakePlatform()
	dispatch := &FakeDispatch{}
	svc := newTestService(store, platform, dispatch)

	msg := reactionMessage("m1", map[sharedtypes.TriggerKey]roletypes.Binding{})
	store.Seed(msg)

	_, err := svc.AddBinding(context.Background(), "guild-1", "m1", "🔴", roletypes.Binding{RoleID: "r-red", Mode: roletypes.ModeNormal})
	require.NoError(t, err)

	stored := store.Stored("guild-1", "m1")
	require.Contains(t, stored.Triggers, sharedtypes.TriggerKey("🔴"))
	// Reaction style seeds the trigger emoji on the message.
	assert.Equal(t, []sharedtypes.TriggerKey{"🔴"}, platform.Reactions["m1"])
}

func TestAddBinding_DuplicateRole(t *testing.T) {
	store := NewFakeStore()
	store.Seed(reactionMessage("m1", map[sharedtypes.TriggerKey]roletypes.Binding{
		"🔴": {RoleID: "r-red"},
	}))
	svc := newTestService(store, NewFakePlatform(), &FakeDispatch{})

	_, err := svc.AddBinding(context.Background(), "guild-1", "m1", "🟢", roletypes.Binding{RoleID: "r-red"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRole)
}

func TestRemoveBinding(t *testing.T) {
	store := NewFakeStore()
	store.Seed(reactionMessage("m1", map[sharedtypes.TriggerKey]roletypes.Binding{
		"🔴": {RoleID: "r-red"},
		"🟢": {RoleID: "r-green"},
	}))
	platform := NewFakePlatform()
	svc := newTestService(store, platform, &FakeDispatch{})

	_, err := svc.RemoveBinding(context.Background(), "guild-1", "m1", "🔴")
	require.NoError(t, err)

	stored := store.Stored("guild-1", "m1")
	assert.NotContains(t, stored.Triggers, sharedtypes.TriggerKey("🔴"))
	assert.Contains(t, stored.Triggers, sharedtypes.TriggerKey("🟢"))
	// Reactions are replayed so only the surviving trigger remains.
	assert.Equal(t, []sharedtypes.TriggerKey{"🟢"}, platform.Reactions["m1"])

	_, err = svc.RemoveBinding(context.Background(), "guild-1", "m1", "🔴")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTrigger)
}

func TestCategoryLifecycle(t *testing.T) {
	store := NewFakeStore()
	store.Seed(menuMessage("m1"))
	platform := NewFakePlatform()
	svc := newTestService(store, platform, &FakeDispatch{})
	ctx := context.Background()

	_, err := svc.AddCategory(ctx, "guild-1", "m1", "Color Roles", "🎨", "Pick a color")
	require.NoError(t, err)

	stored := store.Stored("guild-1", "m1")
	require.Len(t, stored.Categories, 1)
	assert.Equal(t, sharedtypes.CategoryID("color_roles"), stored.Categories[0].ID)

	// Same name slugs to the same ID.
	_, err = svc.AddCategory(ctx, "guild-1", "m1", "color roles", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCategoryExists)

	_, err = svc.AddCategoryBinding(ctx, "guild-1", "m1", "color_roles", roletypes.Binding{RoleID: "r-red", Label: "Red"})
	require.NoError(t, err)
	stored = store.Stored("guild-1", "m1")
	require.Len(t, stored.Categories[0].Bindings, 1)

	_, err = svc.AddCategoryBinding(ctx, "guild-1", "m1", "color_roles", roletypes.Binding{RoleID: "r-red"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRole)

	_, err = svc.RemoveCategoryBinding(ctx, "guild-1", "m1", "r-red")
	require.NoError(t, err)
	assert.Empty(t, store.Stored("guild-1", "m1").Categories[0].Bindings)

	_, err = svc.RemoveCategory(ctx, "guild-1", "m1", "color_roles")
	require.NoError(t, err)
	assert.Empty(t, store.Stored("guild-1", "m1").Categories)

	_, err = svc.RemoveCategory(ctx, "guild-1", "m1", "color_roles")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestAddCategory_RejectsNonMenu(t *testing.T) {
	store := NewFakeStore()
	store.Seed(reactionMessage("m1", nil))
	svc := newTestService(store, NewFakePlatform(), &FakeDispatch{})

	_, err := svc.AddCategory(context.Background(), "guild-1", "m1", "Colors", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotMenuStyle)
}

func TestUpdateSettings(t *testing.T) {
	store := NewFakeStore()
	store.Seed(reactionMessage("m1", nil))
	svc := newTestService(store, NewFakePlatform(), &FakeDispatch{})
	ctx := context.Background()

	three := 3
	_, err := svc.UpdateSettings(ctx, "guild-1", "m1", &three, nil)
	require.NoError(t, err)
	require.NotNil(t, store.Stored("guild-1", "m1").Settings.MaxRoles)
	assert.Equal(t, 3, *store.Stored("guild-1", "m1").Settings.MaxRoles)

	zero := 0
	_, err = svc.UpdateSettings(ctx, "guild-1", "m1", &zero, nil)
	require.NoError(t, err)
	assert.Nil(t, store.Stored("guild-1", "m1").Settings.MaxRoles)

	// Required role toggles on and off.
	member := sharedtypes.RoleID("r-member")
	_, err = svc.UpdateSettings(ctx, "guild-1", "m1", nil, &member)
	require.NoError(t, err)
	assert.Equal(t, []sharedtypes.RoleID{"r-member"}, store.Stored("guild-1", "m1").Settings.RequiredRoles)

	_, err = svc.UpdateSettings(ctx, "guild-1", "m1", nil, &member)
	require.NoError(t, err)
	assert.Empty(t, store.Stored("guild-1", "m1").Settings.RequiredRoles)
}

func TestDeleteRoleMessage(t *testing.T) {
	store := NewFakeStore()
	store.Seed(reactionMessage("m1", nil))
	dispatch := &FakeDispatch{}
	svc := newTestService(store, NewFakePlatform(), dispatch)

	_, err := svc.DeleteRoleMessage(context.Background(), "guild-1", "m1")
	require.NoError(t, err)
	assert.Nil(t, store.Stored("guild-1", "m1"))
	assert.Equal(t, []sharedtypes.MessageID{"m1"}, dispatch.Unregistered)

	_, err = svc.DeleteRoleMessage(context.Background(), "guild-1", "m1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoleMessageMissing)
}

func TestExportConfig(t *testing.T) {
	store := NewFakeStore()
	store.Seed(reactionMessage("m1", map[sharedtypes.TriggerKey]roletypes.Binding{
		"🔴": {RoleID: "r-red"},
	}))
	svc := newTestService(store, NewFakePlatform(), &FakeDispatch{})

	result, err := svc.ExportConfig(context.Background(), "guild-1")
	require.NoError(t, err)

	export, ok := result.Success.(*ConfigExport)
	require.True(t, ok)

	var decoded ExportDocument
	require.NoError(t, json.Unmarshal(export.JSON, &decoded))
	assert.Equal(t, sharedtypes.GuildID("guild-1"), decoded.GuildID)
	assert.False(t, decoded.ExportedAt.IsZero())
	require.Len(t, decoded.Messages, 1)
	assert.Equal(t, sharedtypes.MessageID("m1"), decoded.Messages[0].MessageID)
}

func TestMutateConfig_StaleRejected(t *testing.T) {
	store := NewFakeStore()
	msg := reactionMessage("m1", nil)
	msg.Stale = true
	store.Seed(msg)
	svc := newTestService(store, NewFakePlatform(), &FakeDispatch{})

	_, err := svc.AddBinding(context.Background(), "guild-1", "m1", "🔴", roletypes.Binding{RoleID: "r-red"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoleMessageStale)
}
