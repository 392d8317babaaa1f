package engine

import (
	"fmt"

	"github.com/docuflow/docuflow/internal/domain"
)

// DatabaseRoleResolver resolves a role name against the users table. When
// several enabled users hold the same role it picks the one with the lowest
// id, so resolution is deterministic across calls.
type DatabaseRoleResolver struct {
	Users UserRepo
}

func NewDatabaseRoleResolver(users UserRepo) *DatabaseRoleResolver {
	return &DatabaseRoleResolver{Users: users}
}

func (r *DatabaseRoleResolver) Resolve(roleName string) (int64, error) {
	u, err := r.Users.FindFirstEnabledByRole(roleName)
	if err != nil {
		return 0, err
	}
	if u == nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrNoActorForRole, roleName)
	}
	return u.ID, nil
}
