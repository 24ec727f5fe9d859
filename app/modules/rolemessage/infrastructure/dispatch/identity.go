package roledispatch

import (
	"fmt"
	"sort"
	"strings"

	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

// Component identity kinds.
const (
	KindButton = "button"
	KindMenu   = "menu"
)

// Identity routes one interactive component back to its binding. The
// custom ID doubles as the wire format on the platform component, so the
// engine can route an interaction without any lookup state beyond this.
type Identity struct {
	CustomID   string
	Kind       string
	GuildID    sharedtypes.GuildID
	MessageID  sharedtypes.MessageID
	RoleID     sharedtypes.RoleID     // buttons only
	CategoryID sharedtypes.CategoryID // menus only
}

// ButtonCustomID renders the wire custom ID for a role button.
func ButtonCustomID(roleID sharedtypes.RoleID, messageID sharedtypes.MessageID) string {
	return fmt.Sprintf("role_%s_%s", roleID, messageID)
}

// MenuCustomID renders the wire custom ID for a category select menu.
func MenuCustomID(messageID sharedtypes.MessageID, categoryID sharedtypes.CategoryID) string {
	return fmt.Sprintf("menu_%s_%s", messageID, categoryID)
}

// DeriveIdentities lists every component identity a message's document
// implies: one button per trigger binding, one menu per category. Reaction
// style messages have no components and derive nothing.
func DeriveIdentities(msg *roletypes.RoleMessage) []Identity {
	var ids []Identity
	switch msg.Style {
	case roletypes.StyleButton:
		for _, key := range sortedKeys(msg.Triggers) {
			b := msg.Triggers[key]
			ids = append(ids, Identity{
				CustomID:  ButtonCustomID(b.RoleID, msg.MessageID),
				Kind:      KindButton,
				GuildID:   msg.GuildID,
				MessageID: msg.MessageID,
				RoleID:    b.RoleID,
			})
		}
	case roletypes.StyleMenu:
		for _, cat := range msg.Categories {
			ids = append(ids, Identity{
				CustomID:   MenuCustomID(msg.MessageID, cat.ID),
				Kind:       KindMenu,
				GuildID:    msg.GuildID,
				MessageID:  msg.MessageID,
				CategoryID: cat.ID,
			})
		}
	}
	return ids
}

// ParseCustomID inverts the wire format. Role and message IDs are numeric
// snowflakes, so splitting on the first two separators is unambiguous even
// though category slugs may contain underscores.
func ParseCustomID(customID string) (Identity, bool) {
	switch {
	case strings.HasPrefix(customID, "role_"):
		parts := strings.SplitN(strings.TrimPrefix(customID, "role_"), "_", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return Identity{}, false
		}
		return Identity{
			CustomID:  customID,
			Kind:      KindButton,
			MessageID: sharedtypes.MessageID(parts[1]),
			RoleID:    sharedtypes.RoleID(parts[0]),
		}, true
	case strings.HasPrefix(customID, "menu_"):
		parts := strings.SplitN(strings.TrimPrefix(customID, "menu_"), "_", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return Identity{}, false
		}
		return Identity{
			CustomID:   customID,
			Kind:       KindMenu,
			MessageID:  sharedtypes.MessageID(parts[0]),
			CategoryID: sharedtypes.CategoryID(parts[1]),
		}, true
	}
	return Identity{}, false
}

func sortedKeys(triggers map[sharedtypes.TriggerKey]roletypes.Binding) []sharedtypes.TriggerKey {
	keys := make([]sharedtypes.TriggerKey, 0, len(triggers))
	for key := range triggers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
