package roleservice

import "errors"

// Configuration errors are rejected before any platform call is made.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrRoleMessageExists  = errors.New("role message already configured")
	ErrRoleMessageMissing = errors.New("role message not configured")
	ErrRoleMessageStale   = errors.New("role message is stale")
	ErrDuplicateRole      = errors.New("role already bound on this role message")
	ErrUnknownTrigger     = errors.New("trigger not bound on this role message")
	ErrUnknownCategory    = errors.New("category not found on this role message")
	ErrCategoryExists     = errors.New("category already exists on this role message")
	ErrNotMenuStyle       = errors.New("role message is not menu style")
)
