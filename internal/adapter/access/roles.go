package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/simaogato/kipubank-backend/internal/domain"
)

// RoleTable is an in-process role membership table.
// Owners administer every role; admins and recovery operators may rewrite
// balances and read any account.
type RoleTable struct {
	mu      sync.RWMutex
	members map[domain.Role]map[domain.Address]struct{}
	logger  *slog.Logger
}

// NewRoleTable creates a table seeded with the given members
func NewRoleTable(seed map[domain.Role][]domain.Address, logger *slog.Logger) (*RoleTable, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &RoleTable{
		members: make(map[domain.Role]map[domain.Address]struct{}),
		logger:  logger,
	}
	for role, accounts := range seed {
		if err := validateRole(role); err != nil {
			return nil, err
		}
		for _, account := range accounts {
			t.add(role, account)
		}
	}
	if len(t.members[domain.RoleOwner]) == 0 {
		return nil, errors.New("at least one owner is required")
	}
	return t, nil
}

// ParseRole parses a role name case-insensitively
func ParseRole(s string) (domain.Role, error) {
	role := domain.Role(strings.ToUpper(strings.TrimSpace(s)))
	if err := validateRole(role); err != nil {
		return "", err
	}
	return role, nil
}

func (t *RoleTable) CanManagePermissions(_ context.Context, caller domain.Address) bool {
	return t.HasRole(domain.RoleOwner, caller)
}

func (t *RoleTable) HasRecoveryPermission(_ context.Context, caller domain.Address) bool {
	return t.HasRole(domain.RoleAdmin, caller) || t.HasRole(domain.RoleRecovery, caller)
}

// HasRole reports whether account holds role
func (t *RoleTable) HasRole(role domain.Role, account domain.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.members[role][account]
	return ok
}

// Members lists the holders of role in address order
func (t *RoleTable) Members(role domain.Role) []domain.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.Address, 0, len(t.members[role]))
	for account := range t.members[role] {
		out = append(out, account)
	}
	slices.SortFunc(out, func(a, b domain.Address) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

// Grant gives role to account. Only owners may grant.
func (t *RoleTable) Grant(ctx context.Context, caller domain.Address, role domain.Role, account domain.Address) error {
	if err := validateRole(role); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
	}
	if !t.CanManagePermissions(ctx, caller) {
		return fmt.Errorf("%w: %s cannot grant %s", domain.ErrUnauthorized, caller, role)
	}

	t.mu.Lock()
	t.add(role, account)
	t.mu.Unlock()

	t.logger.Info("role granted", "role", string(role), "account", account.String(), "caller", caller.String())
	return nil
}

// Revoke removes role from account. Only owners may revoke, and the last owner cannot be removed.
func (t *RoleTable) Revoke(ctx context.Context, caller domain.Address, role domain.Role, account domain.Address) error {
	if err := validateRole(role); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
	}
	if !t.CanManagePermissions(ctx, caller) {
		return fmt.Errorf("%w: %s cannot revoke %s", domain.ErrUnauthorized, caller, role)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	holders := t.members[role]
	if _, ok := holders[account]; !ok {
		return nil
	}
	if role == domain.RoleOwner && len(holders) == 1 {
		return fmt.Errorf("%w: cannot revoke the last owner", domain.ErrInvalidValue)
	}
	delete(holders, account)

	t.logger.Info("role revoked", "role", string(role), "account", account.String(), "caller", caller.String())
	return nil
}

func (t *RoleTable) add(role domain.Role, account domain.Address) {
	if t.members[role] == nil {
		t.members[role] = make(map[domain.Address]struct{})
	}
	t.members[role][account] = struct{}{}
}

func validateRole(role domain.Role) error {
	switch role {
	case domain.RoleOwner, domain.RoleAdmin, domain.RoleRecovery:
		return nil
	default:
		return fmt.Errorf("unknown role %q", string(role))
	}
}
