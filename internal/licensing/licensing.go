// Package licensing drives tenant activation: activation codes, resets,
// subscription expiry and the one-time admin bootstrap.
package licensing

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/diewo77/foodcore/internal/metrics"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"github.com/diewo77/foodcore/internal/tenant"
	"github.com/diewo77/foodcore/internal/validation"
	"go.uber.org/zap"
)

// ErrAlreadyConfigured is returned when the admin bootstrap is attempted on a
// restaurant that is not waiting for it.
var ErrAlreadyConfigured = errors.New("licensing: restaurant already configured")

// ErrNotPending is returned by CreateAdmin for restaurants that are not
// activated or whose subscription ended.
var ErrNotPending = errors.New("licensing: restaurant is not awaiting admin creation")

const (
	CodePrefix   = "FC-"
	codeLength   = 8
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateCodeString returns a fresh activation code. Codes are not
// guaranteed unique; redemption matches the first restaurant holding one.
func GenerateCodeString() string {
	var b strings.Builder
	b.WriteString(CodePrefix)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[rand.IntN(len(codeAlphabet))])
	}
	return b.String()
}

// IsExpired reports whether the subscription ended strictly before now.
// A nil end date is a perpetual license.
func IsExpired(r models.Restaurant, now time.Time) bool {
	return r.SubscriptionExpired(now)
}

type Service struct {
	state   *state.State
	log     *zap.Logger
	newCode func() string
}

func NewService(st *state.State, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{state: st, log: log.Named("licensing"), newCode: GenerateCodeString}
}

// SystemPhase decides the entry screen before any tenant is selected.
func (s *Service) SystemPhase() Phase {
	phase := PhaseNoRestaurants
	s.state.View(func(d *models.Dataset) {
		if len(d.Restaurants) == 0 {
			return
		}
		phase = PhaseAwaitingFirstActivation
		for _, r := range d.Restaurants {
			if r.IsActivated {
				phase = PhaseReady
				return
			}
		}
	})
	return phase
}

// Phase evaluates one restaurant. Expiry wins over everything else.
func (s *Service) Phase(restaurantID string) (Phase, error) {
	var (
		phase Phase
		found bool
	)
	now := s.state.Now()
	s.state.View(func(d *models.Dataset) {
		i, ok := s.state.RestaurantIndex(restaurantID)
		if !ok {
			return
		}
		found = true
		r := d.Restaurants[i]
		switch {
		case IsExpired(r, now):
			phase = PhaseSubscriptionExpired
		case !r.IsActivated:
			phase = PhaseUnactivated
		case !hasUsers(d, restaurantID):
			phase = PhasePendingAdminCreation
		default:
			phase = PhaseActive
		}
	})
	if !found {
		return "", tenant.ErrNotFound
	}
	return phase, nil
}

// GenerateCode issues a new code for an unactivated restaurant, replacing
// any previous one.
func (s *Service) GenerateCode(ctx context.Context, restaurantID string) (string, Result) {
	code := s.newCode()
	res := s.transition(ctx, restaurantID, func(r *models.Restaurant) Result {
		if r.IsActivated {
			return ResultInvalidState
		}
		r.ActivationCode = code
		return ResultSuccess
	})
	if !res.OK() {
		return "", res
	}
	s.log.Info("activation code generated", zap.String("restaurant_id", restaurantID))
	return code, res
}

// RedeemCode activates the restaurant holding code and selects it as the
// terminal's tenant. The check is on the restaurant's activation flag, so
// a code of an activated restaurant always yields ALREADY_USED.
func (s *Service) RedeemCode(ctx context.Context, code string) Result {
	code = strings.TrimSpace(code)
	var (
		res          Result
		restaurantID string
	)
	now := models.AtPtr(s.state.Now())
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		res = ResultInvalidCode
		if code == "" {
			return errNoChange
		}
		for i := range d.Restaurants {
			r := &d.Restaurants[i]
			if r.ActivationCode != code {
				continue
			}
			if r.IsActivated {
				res = ResultAlreadyUsed
				return errNoChange
			}
			r.IsActivated = true
			r.ActivationDate = now
			restaurantID = r.ID
			res = ResultSuccess
			return nil
		}
		return errNoChange
	}, store.KeyRestaurants)
	if err != nil && !errors.Is(err, errNoChange) {
		s.log.Error("redeem code failed", zap.Error(err))
		res = ResultStorageError
	}
	metrics.ActivationAttempts.WithLabelValues(string(res)).Inc()
	if res.OK() {
		s.state.SetCurrentRestaurantID(ctx, restaurantID)
		s.log.Info("restaurant activated", zap.String("restaurant_id", restaurantID))
	}
	return res
}

// ResetActivation reopens an activated restaurant for a new code cycle. Its
// subscription and data are kept.
func (s *Service) ResetActivation(ctx context.Context, restaurantID string) Result {
	res := s.transition(ctx, restaurantID, func(r *models.Restaurant) Result {
		if !r.IsActivated {
			return ResultInvalidState
		}
		r.IsActivated = false
		r.ActivationDate = nil
		return ResultSuccess
	})
	if res.OK() {
		s.log.Info("activation reset", zap.String("restaurant_id", restaurantID))
	}
	return res
}

// CreateAdmin bootstraps the first account of an activated restaurant. It
// only succeeds while the restaurant has no users.
func (s *Service) CreateAdmin(ctx context.Context, restaurantID, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	v := make(validation.Violations)
	validation.Required("username", username, v)
	validation.Required("password", password, v)
	if err := v.Err(); err != nil {
		return models.User{}, err
	}

	var user models.User
	now := s.state.Now()
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		i, ok := s.state.RestaurantIndex(restaurantID)
		if !ok {
			return tenant.ErrNotFound
		}
		r := d.Restaurants[i]
		if hasUsers(d, restaurantID) {
			return ErrAlreadyConfigured
		}
		if !r.IsActivated || IsExpired(r, now) {
			return ErrNotPending
		}
		user = models.User{
			ID:           s.state.NextID(),
			RestaurantID: restaurantID,
			Username:     username,
			Password:     password,
			Role:         models.RoleAdmin,
			Permissions:  models.FullPermissions(),
		}
		d.Users = append(d.Users, user)
		return nil
	}, store.KeyUsers)
	if err != nil {
		return models.User{}, err
	}
	s.log.Info("admin account created", zap.String("restaurant_id", restaurantID), zap.Int64("user_id", user.ID))
	return user, nil
}

var errNoChange = errors.New("licensing: no change")

func (s *Service) transition(ctx context.Context, restaurantID string, fn func(r *models.Restaurant) Result) Result {
	res := ResultNotFound
	err := s.state.Mutate(ctx, func(d *models.Dataset) error {
		i, ok := s.state.RestaurantIndex(restaurantID)
		if !ok {
			return errNoChange
		}
		r := d.Restaurants[i]
		if res = fn(&r); !res.OK() {
			return errNoChange
		}
		d.Restaurants[i] = r
		return nil
	}, store.KeyRestaurants)
	if err != nil && !errors.Is(err, errNoChange) {
		s.log.Error("licensing transition failed", zap.String("restaurant_id", restaurantID), zap.Error(err))
		return ResultStorageError
	}
	return res
}

func hasUsers(d *models.Dataset, restaurantID string) bool {
	for _, u := range d.Users {
		if u.RestaurantID == restaurantID {
			return true
		}
	}
	return false
}
