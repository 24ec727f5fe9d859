package roletypes

import (
	"sort"
	"strings"

	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

// SchemaVersion is the current version of the persisted role message
// document. Documents with a lower version are migrated at load time.
const SchemaVersion = 1

// Style determines how members activate triggers on a role message.
type Style string

const (
	StyleReaction Style = "reaction"
	StyleButton   Style = "button"
	StyleMenu     Style = "menu"
)

// Mode is the conflict-resolution policy of a single binding.
type Mode string

const (
	// ModeNormal toggles the bound role independently of everything else.
	ModeNormal Mode = "normal"
	// ModeUnique allows at most one unique-mode role per scope (the role
	// message, or the category for menu style).
	ModeUnique Mode = "unique"
	// ModeExclusive strips every other bound role in the guild when taken.
	ModeExclusive Mode = "exclusive"
)

// Binding maps one trigger to one role with a conflict-resolution mode.
type Binding struct {
	RoleID      sharedtypes.RoleID `json:"role_id"`
	Mode        Mode               `json:"mode"`
	Label       string             `json:"label,omitempty"`
	Emoji       string             `json:"emoji,omitempty"`
	Description string             `json:"description,omitempty"`
}

// Category is a named sub-scope of bindings inside a menu-style message.
// Binding order is the menu option order.
type Category struct {
	ID          sharedtypes.CategoryID `json:"id"`
	Name        string                 `json:"name"`
	Emoji       string                 `json:"emoji,omitempty"`
	Description string                 `json:"description,omitempty"`
	Bindings    []Binding              `json:"bindings"`
}

// Unique reports whether any binding in the category uses unique mode,
// which makes the category a single-select scope.
func (c *Category) Unique() bool {
	for _, b := range c.Bindings {
		if b.Mode == ModeUnique {
			return true
		}
	}
	return false
}

// Settings gate and cap activations on one role message.
type Settings struct {
	RequiredRoles []sharedtypes.RoleID `json:"required_roles,omitempty"`
	MaxRoles      *int                 `json:"max_roles,omitempty"`
}

// View is the rendered-message description handed to the platform adapter.
// The engine stores it so rebuild/clone can re-render; it never interprets it.
type View struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color,omitempty"`
}

// RoleMessage is the persisted configuration attached to one platform
// message. Identity is (GuildID, MessageID); the document is the unit of
// consistency and is always replaced whole.
type RoleMessage struct {
	SchemaVersion int                                  `json:"schema_version"`
	GuildID       sharedtypes.GuildID                  `json:"guild_id"`
	ChannelID     sharedtypes.ChannelID                `json:"channel_id"`
	MessageID     sharedtypes.MessageID                `json:"message_id"`
	Style         Style                                `json:"style"`
	Settings      Settings                             `json:"settings"`
	Triggers      map[sharedtypes.TriggerKey]Binding   `json:"triggers,omitempty"`
	Categories    []Category                           `json:"categories,omitempty"`
	View          View                                 `json:"view"`
	// Stale marks a message whose platform counterpart is gone. Stale
	// documents keep their configuration for rebuild/clone but are excluded
	// from dispatch and resolution.
	Stale bool `json:"stale,omitempty"`
}

// Live reports whether the message participates in dispatch and resolution.
func (m *RoleMessage) Live() bool { return !m.Stale }

// FindBinding resolves a trigger key to its binding. For menu style the
// trigger key is the bound role ID and the category bindings are searched.
// For button style a role ID also works as the key, since button custom
// IDs carry the role ID rather than the trigger key.
func (m *RoleMessage) FindBinding(key sharedtypes.TriggerKey) (Binding, bool) {
	if m.Style == StyleMenu {
		for _, cat := range m.Categories {
			for _, b := range cat.Bindings {
				if sharedtypes.TriggerKey(b.RoleID) == key {
					return b, true
				}
			}
		}
		return Binding{}, false
	}
	if b, ok := m.Triggers[key]; ok {
		return b, true
	}
	if m.Style == StyleButton {
		for _, b := range m.Triggers {
			if sharedtypes.TriggerKey(b.RoleID) == key {
				return b, true
			}
		}
	}
	return Binding{}, false
}

// CategoryOf returns the category containing the trigger key, for menu
// style. Reaction and button styles have no categories.
func (m *RoleMessage) CategoryOf(key sharedtypes.TriggerKey) (*Category, bool) {
	for i := range m.Categories {
		for _, b := range m.Categories[i].Bindings {
			if sharedtypes.TriggerKey(b.RoleID) == key {
				return &m.Categories[i], true
			}
		}
	}
	return nil, false
}

// Category returns the category with the given ID.
func (m *RoleMessage) Category(id sharedtypes.CategoryID) (*Category, bool) {
	for i := range m.Categories {
		if m.Categories[i].ID == id {
			return &m.Categories[i], true
		}
	}
	return nil, false
}

// BoundRoleIDs returns every role bound by this message, trigger map first
// (sorted by key for stability), then category bindings in order.
func (m *RoleMessage) BoundRoleIDs() []sharedtypes.RoleID {
	var out []sharedtypes.RoleID
	for _, key := range sortedTriggerKeys(m.Triggers) {
		out = append(out, m.Triggers[key].RoleID)
	}
	for _, cat := range m.Categories {
		for _, b := range cat.Bindings {
			out = append(out, b.RoleID)
		}
	}
	return out
}

// BindsRole reports whether the message binds the given role.
func (m *RoleMessage) BindsRole(id sharedtypes.RoleID) bool {
	for _, bound := range m.BoundRoleIDs() {
		if bound == id {
			return true
		}
	}
	return false
}

// Empty reports whether the message has no bindings left at all.
func (m *RoleMessage) Empty() bool {
	if len(m.Triggers) > 0 {
		return false
	}
	for _, cat := range m.Categories {
		if len(cat.Bindings) > 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the document.
func (m *RoleMessage) Clone() *RoleMessage {
	out := *m
	if m.Triggers != nil {
		out.Triggers = make(map[sharedtypes.TriggerKey]Binding, len(m.Triggers))
		for k, v := range m.Triggers {
			out.Triggers[k] = v
		}
	}
	if m.Categories != nil {
		out.Categories = make([]Category, len(m.Categories))
		for i, cat := range m.Categories {
			cp := cat
			cp.Bindings = append([]Binding(nil), cat.Bindings...)
			out.Categories[i] = cp
		}
	}
	if m.Settings.RequiredRoles != nil {
		out.Settings.RequiredRoles = append([]sharedtypes.RoleID(nil), m.Settings.RequiredRoles...)
	}
	if m.Settings.MaxRoles != nil {
		v := *m.Settings.MaxRoles
		out.Settings.MaxRoles = &v
	}
	return &out
}

// Migrate upgrades a loaded document to the current schema version.
// Version 0 documents come from the pre-versioned dict-of-dicts format:
// modes may be blank, category IDs unset, and styles spelled in the old
// plural form. Returns true when anything changed.
func (m *RoleMessage) Migrate() bool {
	if m.SchemaVersion >= SchemaVersion {
		return false
	}
	switch m.Style {
	case "reactions", "":
		m.Style = StyleReaction
	case "buttons":
		m.Style = StyleButton
	case "menus":
		m.Style = StyleMenu
	}
	for key, b := range m.Triggers {
		if b.Mode == "" {
			b.Mode = ModeNormal
		}
		if b.Emoji == "" {
			b.Emoji = string(key)
		}
		m.Triggers[key] = b
	}
	for i := range m.Categories {
		cat := &m.Categories[i]
		if cat.ID == "" {
			cat.ID = SlugifyCategory(cat.Name)
		}
		for j := range cat.Bindings {
			if cat.Bindings[j].Mode == "" {
				cat.Bindings[j].Mode = ModeNormal
			}
		}
	}
	m.SchemaVersion = SchemaVersion
	return true
}

// SlugifyCategory derives a category ID from its display name, mirroring
// how category IDs were minted historically so old custom IDs keep routing.
func SlugifyCategory(name string) sharedtypes.CategoryID {
	return sharedtypes.CategoryID(strings.ReplaceAll(strings.ToLower(name), " ", "_"))
}

func sortedTriggerKeys(triggers map[sharedtypes.TriggerKey]Binding) []sharedtypes.TriggerKey {
	keys := make([]sharedtypes.TriggerKey, 0, len(triggers))
	for k := range triggers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
