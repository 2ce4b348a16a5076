package domain

import "context"

// Role names understood by the access controller
type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleAdmin    Role = "ADMIN"
	RoleRecovery Role = "RECOVERY"
)

// AccessController answers the two permission questions the custody core asks.
// Role membership and hierarchy live entirely behind this interface.
type AccessController interface {
	// CanManagePermissions reports whether caller holds the owner permission
	CanManagePermissions(ctx context.Context, caller Address) bool

	// HasRecoveryPermission reports whether caller may rewrite balances
	// and read other accounts (admin or recovery role)
	HasRecoveryPermission(ctx context.Context, caller Address) bool
}
