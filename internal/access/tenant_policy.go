package access

import (
	"context"

	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/gate"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
)

// Scope stands in for "the selected restaurant" when no concrete resource
// is loaded yet.
type Scope string

func (s Scope) GetRestaurantID() string { return string(s) }

// TenantPolicy lets staff act only on resources of their own restaurant.
// The system owner is not bound to a tenant.
type TenantPolicy struct {
	state *state.State
}

func NewTenantPolicy(st *state.State) *TenantPolicy {
	return &TenantPolicy{state: st}
}

func (p *TenantPolicy) Can(_ context.Context, subject int64, _ gate.Action, resource any) bool {
	if subject == auth.OwnerSubject {
		return true
	}
	owned, ok := resource.(models.Tenanted)
	if !ok {
		return false
	}
	u, ok := FindUser(p.state, subject)
	if !ok {
		return false
	}
	return u.Role == models.RoleSuperAdmin || owned.GetRestaurantID() == u.RestaurantID
}
