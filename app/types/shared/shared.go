package sharedtypes

// Snowflake-shaped identifiers used across modules. Typed strings keep
// guild/channel/message/role/member IDs from being swapped at call sites.
type (
	GuildID   string
	ChannelID string
	MessageID string
	RoleID    string
	MemberID  string
)

// TriggerKey identifies one trigger on a role message. For reaction and
// button styles this is the emoji (unicode, or name:id for custom emoji,
// matching Emoji.APIName on gateway events); for menu styles it is the
// bound role ID, matching the select option value.
type TriggerKey string

// CategoryID identifies a category inside a menu-style role message.
// Derived by slugifying the category name.
type CategoryID string

// RoleSet is a membership set of role IDs.
type RoleSet map[RoleID]struct{}

// NewRoleSet builds a RoleSet from a slice of role IDs.
func NewRoleSet(ids ...RoleID) RoleSet {
	s := make(RoleSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set.
func (s RoleSet) Contains(id RoleID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s RoleSet) Add(id RoleID) { s[id] = struct{}{} }

// Remove deletes id from the set.
func (s RoleSet) Remove(id RoleID) { delete(s, id) }

// Clone returns an independent copy of the set.
func (s RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}
