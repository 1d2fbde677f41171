package access

import (
	"context"

	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/gate"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
)

// StateResolver resolves session subjects against the users collection.
type StateResolver struct {
	state *state.State
}

func NewStateResolver(st *state.State) *StateResolver {
	return &StateResolver{state: st}
}

func (r *StateResolver) Resolve(_ context.Context, subject int64) (gate.Profile, error) {
	if subject == auth.OwnerSubject {
		return OwnerProfile(), nil
	}
	u, ok := FindUser(r.state, subject)
	if !ok {
		return nil, nil
	}
	return ProfileFor(u), nil
}

// FindUser looks a user up by id across every tenant.
func FindUser(st *state.State, id int64) (models.User, bool) {
	var (
		user  models.User
		found bool
	)
	st.View(func(d *models.Dataset) {
		for _, u := range d.Users {
			if u.ID == id {
				user, found = u, true
				return
			}
		}
	})
	return user, found
}
