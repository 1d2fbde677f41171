// Package staff manages the users of a restaurant.
package staff

import (
	"context"
	"errors"
	"strings"

	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"github.com/diewo77/foodcore/internal/validation"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("staff: user not found")
	// ErrImmutablePermissions protects owner and admin accounts from lockout.
	ErrImmutablePermissions = errors.New("staff: owner and admin permissions cannot be changed")
	ErrInvalidCredentials   = errors.New("staff: invalid username or password")
)

// tenantRoles can be created inside a restaurant.
var tenantRoles = []string{
	string(models.RoleOwner),
	string(models.RoleAdmin),
	string(models.RoleCashier),
	string(models.RoleDriver),
}

type NewUser struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// Changes are the editable fields of a user. An empty password keeps the
// current one.
type Changes struct {
	Username    string             `json:"username"`
	Password    string             `json:"password,omitempty"`
	Role        models.Role        `json:"role"`
	Permissions models.Permissions `json:"permissions"`
}

type Service struct {
	state *state.State
	log   *zap.Logger
}

func NewService(st *state.State, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{state: st, log: log.Named("staff")}
}

// Add creates a user. Owners and admins get the full permission set, every
// other role starts with none.
func (s *Service) Add(ctx context.Context, restaurantID string, in NewUser) (models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	var user models.User
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		v := make(validation.Violations)
		validation.Required("username", in.Username, v)
		validation.Required("password", in.Password, v)
		validation.OneOf("role", string(in.Role), tenantRoles, v)
		if usernameTaken(d, restaurantID, in.Username, 0) {
			v["username"] = "duplicate"
		}
		if err := v.Err(); err != nil {
			return err
		}
		user = models.User{
			ID:           s.state.NextID(),
			RestaurantID: restaurantID,
			Username:     in.Username,
			Password:     in.Password,
			Role:         in.Role,
			Permissions:  models.DefaultPermissions(in.Role),
		}
		d.Users = append(d.Users, user)
		return nil
	}, store.KeyUsers)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info("user added", zap.String("restaurant_id", restaurantID), zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update edits a user. Owner and admin permissions stay at the full set
// whatever the input says.
func (s *Service) Update(ctx context.Context, restaurantID string, id int64, in Changes) (models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	var user models.User
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		i, ok := findUser(d, restaurantID, id)
		if !ok {
			return ErrNotFound
		}
		v := make(validation.Violations)
		validation.Required("username", in.Username, v)
		validation.OneOf("role", string(in.Role), tenantRoles, v)
		if usernameTaken(d, restaurantID, in.Username, id) {
			v["username"] = "duplicate"
		}
		if err := v.Err(); err != nil {
			return err
		}
		u := d.Users[i]
		u.Username = in.Username
		u.Role = in.Role
		if in.Password != "" {
			u.Password = in.Password
		}
		if u.Role.Privileged() {
			u.Permissions = models.FullPermissions()
		} else {
			u.Permissions = in.Permissions
		}
		d.Users[i] = u
		user = u
		return nil
	}, store.KeyUsers)
	return user, err
}

// UpdatePermissions replaces the flags of a non-privileged user.
func (s *Service) UpdatePermissions(ctx context.Context, restaurantID string, id int64, perms models.Permissions) (models.User, error) {
	var user models.User
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		i, ok := findUser(d, restaurantID, id)
		if !ok {
			return ErrNotFound
		}
		if d.Users[i].Role.Privileged() || d.Users[i].Role == models.RoleSuperAdmin {
			return ErrImmutablePermissions
		}
		d.Users[i].Permissions = perms
		user = d.Users[i]
		return nil
	}, store.KeyUsers)
	if err == nil {
		s.log.Info("permissions updated", zap.String("restaurant_id", restaurantID), zap.Int64("user_id", id))
	}
	return user, err
}

func (s *Service) Delete(ctx context.Context, restaurantID string, id int64) error {
	return s.state.Mutate(ctx, func(d *models.Dataset) error {
		i, ok := findUser(d, restaurantID, id)
		if !ok {
			return ErrNotFound
		}
		d.Users = append(d.Users[:i], d.Users[i+1:]...)
		return nil
	}, store.KeyUsers)
}

func (s *Service) Get(restaurantID string, id int64) (models.User, error) {
	var (
		user models.User
		ok   bool
	)
	s.state.View(func(d *models.Dataset) {
		var i int
		if i, ok = findUser(d, restaurantID, id); ok {
			user = d.Users[i]
		}
	})
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

// List returns the users of one restaurant.
func (s *Service) List(restaurantID string) []models.User {
	var out []models.User
	s.state.View(func(d *models.Dataset) {
		out = models.ForTenant(d.Users, restaurantID)
	})
	return out
}

// Drivers returns the restaurant's users with the driver role.
func (s *Service) Drivers(restaurantID string) []models.User {
	out := make([]models.User, 0)
	for _, u := range s.List(restaurantID) {
		if u.Role == models.RoleDriver {
			out = append(out, u)
		}
	}
	return out
}

// Authenticate finds the user by name within the restaurant and checks the
// password.
func (s *Service) Authenticate(restaurantID, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	for _, u := range s.List(restaurantID) {
		if u.Username == username && auth.CheckPassword(u.Password, password) {
			return u, nil
		}
	}
	return models.User{}, ErrInvalidCredentials
}

func findUser(d *models.Dataset, restaurantID string, id int64) (int, bool) {
	for i, u := range d.Users {
		if u.ID == id && u.RestaurantID == restaurantID {
			return i, true
		}
	}
	return 0, false
}

func usernameTaken(d *models.Dataset, restaurantID, username string, except int64) bool {
	for _, u := range d.Users {
		if u.RestaurantID == restaurantID && u.ID != except && strings.EqualFold(u.Username, username) {
			return true
		}
	}
	return false
}
