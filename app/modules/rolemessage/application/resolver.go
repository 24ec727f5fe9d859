package roleservice

import (
	"sort"

	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

// ActivationKind distinguishes a trigger being taken from one being
// explicitly withdrawn (reaction removed, menu option unchecked).
type ActivationKind string

const (
	ActivationSelect   ActivationKind = "select"
	ActivationDeselect ActivationKind = "deselect"
)

// RejectReason explains why an activation produced no mutations.
type RejectReason string

const (
	RejectMissingBinding      RejectReason = "missing_binding"
	RejectMissingRequiredRole RejectReason = "missing_required_role"
	RejectCapReached          RejectReason = "cap_reached"
)

// Outcome is the resolver's verdict for one activation. Either Rejected is
// set with a reason, or Add/Remove hold the exact role mutations the caller
// must issue. Both slices empty is a valid applied outcome (no-op).
type Outcome struct {
	Rejected bool
	Reason   RejectReason
	Add      []sharedtypes.RoleID
	Remove   []sharedtypes.RoleID
}

// Applied reports whether the outcome carries mutations to issue.
func (o Outcome) Applied() bool { return !o.Rejected }

func rejected(reason RejectReason) Outcome {
	return Outcome{Rejected: true, Reason: reason}
}

// Resolve computes the role mutations for a single-trigger activation.
// It is pure: member roles are the freshly fetched live set, guild is every
// role message in the guild (for exclusive scope), target is the message the
// trigger lives on. No invariant survives unless the caller issues exactly
// the returned mutations.
func Resolve(
	memberRoles sharedtypes.RoleSet,
	guild []*roletypes.RoleMessage,
	target *roletypes.RoleMessage,
	trigger sharedtypes.TriggerKey,
	kind ActivationKind,
) Outcome {
	binding, ok := target.FindBinding(trigger)
	if !ok {
		return rejected(RejectMissingBinding)
	}

	if kind == ActivationDeselect {
		// Withdrawing a trigger never runs mode-conflict logic.
		if memberRoles.Contains(binding.RoleID) {
			return Outcome{Remove: []sharedtypes.RoleID{binding.RoleID}}
		}
		return Outcome{}
	}

	if !hasRequiredRole(memberRoles, target.Settings.RequiredRoles) {
		return rejected(RejectMissingRequiredRole)
	}
	if capReached(memberRoles, target, binding.RoleID) {
		return rejected(RejectCapReached)
	}

	working := memberRoles.Clone()
	applySelect(working, guild, target, trigger, binding)
	return diff(memberRoles, working)
}

// ResolveMenu computes the aggregated mutations for a menu multi-select:
// the member submitted the full desired role set for one category.
func ResolveMenu(
	memberRoles sharedtypes.RoleSet,
	guild []*roletypes.RoleMessage,
	target *roletypes.RoleMessage,
	categoryID sharedtypes.CategoryID,
	desired []sharedtypes.RoleID,
) Outcome {
	cat, ok := target.Category(categoryID)
	if !ok {
		return rejected(RejectMissingBinding)
	}
	if !hasRequiredRole(memberRoles, target.Settings.RequiredRoles) {
		return rejected(RejectMissingRequiredRole)
	}

	desiredSet := sharedtypes.NewRoleSet(desired...)
	working := memberRoles.Clone()

	// Deselections first: options the member held but cleared.
	for _, b := range cat.Bindings {
		if working.Contains(b.RoleID) && !desiredSet.Contains(b.RoleID) {
			working.Remove(b.RoleID)
		}
	}
	// Then each newly selected option runs the full select path.
	for _, b := range cat.Bindings {
		if !desiredSet.Contains(b.RoleID) || memberRoles.Contains(b.RoleID) {
			continue
		}
		applySelect(working, guild, target, sharedtypes.TriggerKey(b.RoleID), b)
	}

	if overCap(working, target) {
		return rejected(RejectCapReached)
	}
	return diff(memberRoles, working)
}

// applySelect mutates working with the mode semantics of one selected
// binding: pre-removals for unique/exclusive scope, then the toggle.
func applySelect(
	working sharedtypes.RoleSet,
	guild []*roletypes.RoleMessage,
	target *roletypes.RoleMessage,
	trigger sharedtypes.TriggerKey,
	binding roletypes.Binding,
) {
	switch binding.Mode {
	case roletypes.ModeUnique:
		for _, other := range uniqueScopeRoles(target, trigger) {
			if other != binding.RoleID {
				working.Remove(other)
			}
		}
	case roletypes.ModeExclusive:
		for _, msg := range guild {
			for _, other := range msg.BoundRoleIDs() {
				if other != binding.RoleID {
					working.Remove(other)
				}
			}
		}
	}

	if working.Contains(binding.RoleID) {
		working.Remove(binding.RoleID)
	} else {
		working.Add(binding.RoleID)
	}
}

// uniqueScopeRoles returns the role IDs sharing a unique scope with the
// trigger: the whole message for reaction/button style, the containing
// category for menu style.
func uniqueScopeRoles(target *roletypes.RoleMessage, trigger sharedtypes.TriggerKey) []sharedtypes.RoleID {
	if target.Style == roletypes.StyleMenu {
		if cat, ok := target.CategoryOf(trigger); ok {
			out := make([]sharedtypes.RoleID, 0, len(cat.Bindings))
			for _, b := range cat.Bindings {
				out = append(out, b.RoleID)
			}
			return out
		}
		return nil
	}
	return target.BoundRoleIDs()
}

func hasRequiredRole(memberRoles sharedtypes.RoleSet, required []sharedtypes.RoleID) bool {
	if len(required) == 0 {
		return true
	}
	for _, id := range required {
		if memberRoles.Contains(id) {
			return true
		}
	}
	return false
}

// capReached applies the max_roles gate for a single select: a member at
// the cap may still toggle off a role they already hold.
func capReached(memberRoles sharedtypes.RoleSet, target *roletypes.RoleMessage, roleID sharedtypes.RoleID) bool {
	limit := target.Settings.MaxRoles
	if limit == nil {
		return false
	}
	if memberRoles.Contains(roleID) {
		return false
	}
	return heldBound(memberRoles, target) >= *limit
}

func overCap(working sharedtypes.RoleSet, target *roletypes.RoleMessage) bool {
	limit := target.Settings.MaxRoles
	if limit == nil {
		return false
	}
	return heldBound(working, target) > *limit
}

func heldBound(roles sharedtypes.RoleSet, target *roletypes.RoleMessage) int {
	n := 0
	seen := make(sharedtypes.RoleSet)
	for _, id := range target.BoundRoleIDs() {
		if seen.Contains(id) {
			continue
		}
		seen.Add(id)
		if roles.Contains(id) {
			n++
		}
	}
	return n
}

// diff turns the simulated final role set into ordered Add/Remove slices.
// Simulating first keeps the aggregate internally consistent: a role both
// pre-removed by one binding and selected by another nets out correctly.
func diff(before, after sharedtypes.RoleSet) Outcome {
	var out Outcome
	for id := range after {
		if !before.Contains(id) {
			out.Add = append(out.Add, id)
		}
	}
	for id := range before {
		if !after.Contains(id) {
			out.Remove = append(out.Remove, id)
		}
	}
	sortRoleIDs(out.Add)
	sortRoleIDs(out.Remove)
	return out
}

func sortRoleIDs(ids []sharedtypes.RoleID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
