// Package session tracks who is using the terminal: the selected
// restaurant (persisted) and the logged-in user or system owner (memory
// only). It also owns the backup scheduler lifecycle.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/diewo77/foodcore/internal/access"
	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/config"
	"github.com/diewo77/foodcore/internal/licensing"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/staff"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/tenant"
	"go.uber.org/zap"
)

var (
	ErrNoRestaurant  = errors.New("session: no restaurant selected")
	ErrNotSelectable = errors.New("session: restaurant is not activated")
	// ErrLoginClosed: the selected restaurant cannot log users in in its current phase.
	ErrLoginClosed = errors.New("session: restaurant is not accepting logins")
)

// Lifecycle is the background work started with the session.
type Lifecycle interface {
	Start(ctx context.Context)
	Stop()
}

// Entry is what the terminal should show.
type Entry struct {
	Phase         licensing.Phase `json:"phase"`
	RestaurantID  string          `json:"restaurantId,omitempty"`
	Owner         bool            `json:"owner"`
	LoginRequired bool            `json:"loginRequired"`
	LoggedIn      bool            `json:"loggedIn"`
	User          *models.User    `json:"user,omitempty"`
}

type Manager struct {
	state     *state.State
	licensing *licensing.Service
	staff     *staff.Service
	owner     config.OwnerConfig
	tasks     Lifecycle
	log       *zap.Logger

	mu      sync.RWMutex
	userID  int64
	isOwner bool
}

func NewManager(st *state.State, lic *licensing.Service, staffSvc *staff.Service, owner config.OwnerConfig, tasks Lifecycle, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		state:     st,
		licensing: lic,
		staff:     staffSvc,
		owner:     owner,
		tasks:     tasks,
		log:       log.Named("session"),
	}
}

func (m *Manager) Start(ctx context.Context) {
	if m.tasks != nil {
		m.tasks.Start(ctx)
	}
}

func (m *Manager) Close() {
	if m.tasks != nil {
		m.tasks.Stop()
	}
}

// Enter evaluates the routing phase. A persisted restaurant id that no
// longer exists is dropped.
func (m *Manager) Enter(ctx context.Context) Entry {
	if m.IsOwner() {
		return Entry{Phase: m.licensing.SystemPhase(), Owner: true, LoggedIn: true}
	}
	if sys := m.licensing.SystemPhase(); sys != licensing.PhaseReady {
		return Entry{Phase: sys}
	}
	current := m.state.CurrentRestaurantID()
	if current == "" {
		return Entry{Phase: licensing.PhaseReady}
	}
	phase, err := m.licensing.Phase(current)
	if errors.Is(err, tenant.ErrNotFound) {
		m.log.Warn("selected restaurant no longer exists", zap.String("restaurant_id", current))
		m.SwitchRestaurant(ctx)
		return Entry{Phase: licensing.PhaseReady}
	}
	e := Entry{Phase: phase, RestaurantID: current}
	if phase != licensing.PhaseActive {
		return e
	}
	if u, ok := m.CurrentUser(); ok {
		e.LoggedIn = true
		e.User = &u
	} else {
		e.LoginRequired = true
	}
	return e
}

// Login opens the owner console for the owner credentials, otherwise
// authenticates a user of the selected restaurant. It returns the session
// subject.
func (m *Manager) Login(ctx context.Context, username, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if m.owner.Username != "" && username == m.owner.Username && auth.CheckPassword(m.owner.Password, password) {
		m.mu.Lock()
		m.isOwner = true
		m.userID = 0
		m.mu.Unlock()
		m.log.Info("owner console opened")
		return auth.OwnerSubject, nil
	}

	current := m.state.CurrentRestaurantID()
	if current == "" {
		return 0, ErrNoRestaurant
	}
	if phase, err := m.licensing.Phase(current); err != nil || phase != licensing.PhaseActive {
		return 0, ErrLoginClosed
	}
	u, err := m.staff.Authenticate(current, username, password)
	if err != nil {
		m.log.Info("login failed", zap.String("restaurant_id", current), zap.String("username", username))
		return 0, err
	}
	m.mu.Lock()
	m.userID = u.ID
	m.isOwner = false
	m.mu.Unlock()
	m.log.Info("user logged in", zap.String("restaurant_id", current), zap.Int64("user_id", u.ID))
	return u.ID, nil
}

// Logout ends the user or owner session. The restaurant stays selected.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = 0
	m.isOwner = false
}

// SwitchRestaurant logs out and forgets the selected restaurant.
func (m *Manager) SwitchRestaurant(ctx context.Context) {
	m.mu.Lock()
	m.userID = 0
	m.mu.Unlock()
	m.state.SetCurrentRestaurantID(ctx, "")
}

// Select makes an activated restaurant the terminal's tenant.
func (m *Manager) Select(ctx context.Context, restaurantID string) error {
	r, ok := m.state.Restaurant(restaurantID)
	if !ok {
		return tenant.ErrNotFound
	}
	if !r.IsActivated {
		return ErrNotSelectable
	}
	m.mu.Lock()
	m.userID = 0
	m.mu.Unlock()
	m.state.SetCurrentRestaurantID(ctx, restaurantID)
	return nil
}

// Invalidate drops the logged-in user, e.g. after a restore replaced the
// user list. The owner console stays open.
func (m *Manager) Invalidate(context.Context) {
	m.mu.Lock()
	m.userID = 0
	m.mu.Unlock()
	m.log.Info("session invalidated")
}

// CurrentUser returns the logged-in user as currently stored.
func (m *Manager) CurrentUser() (models.User, bool) {
	m.mu.RLock()
	id := m.userID
	m.mu.RUnlock()
	if id == 0 {
		return models.User{}, false
	}
	u, ok := access.FindUser(m.state, id)
	if !ok || u.RestaurantID != m.state.CurrentRestaurantID() {
		return models.User{}, false
	}
	return u, true
}

func (m *Manager) IsOwner() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isOwner
}

// Verify accepts a cookie subject only while it is the active session. A
// tenant session also ends as soon as its restaurant leaves the active
// phase, e.g. when the subscription expires or the activation is reset.
func (m *Manager) Verify(_ context.Context, subject int64) bool {
	if subject == auth.OwnerSubject {
		return m.IsOwner()
	}
	u, ok := m.CurrentUser()
	if !ok || u.ID != subject {
		return false
	}
	phase, err := m.licensing.Phase(u.RestaurantID)
	if err != nil || phase != licensing.PhaseActive {
		m.log.Info("session rejected, restaurant not active",
			zap.String("restaurant_id", u.RestaurantID),
			zap.String("phase", string(phase)),
		)
		return false
	}
	return true
}
