package access

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/gate"
	"github.com/diewo77/foodcore/internal/httpx"
	"github.com/diewo77/foodcore/internal/i18n"
	"github.com/diewo77/foodcore/internal/state"
)

// tenantResources are checked against the selected restaurant.
var tenantResources = []string{
	ResourceAdmin,
	ResourceMenu,
	ResourceInventory,
	ResourceUsers,
	ResourceReports,
	ResourcePrices,
	ResourceOrders,
	ResourceCustomers,
}

// AuthGate is the central authorization point for HTTP handlers.
type AuthGate struct {
	Gate          *gate.Gate[int64]
	CacheResolver *gate.CachedResolver[int64]
	state         *state.State
}

// NewAuthGate builds the gate with a cached resolver and the tenant policy
// registered for every tenant resource.
func NewAuthGate(st *state.State, cacheTTL time.Duration) *AuthGate {
	cached := gate.NewCachedResolver[int64](NewStateResolver(st), cacheTTL)
	g := gate.New[int64](cached)
	policy := NewTenantPolicy(st)
	for _, res := range tenantResources {
		g.Register(res, policy)
	}
	return &AuthGate{Gate: g, CacheResolver: cached, state: st}
}

// Authorize checks the session subject against resourceType:action and,
// when given, the concrete resource.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error {
	subject, ok := auth.SubjectFromContext(ctx)
	if !ok {
		return gate.ErrUnauthorized
	}
	return ag.Gate.Authorize(ctx, subject, action, resourceType, resource)
}

// InvalidateUser drops the cached profile, e.g. after a permission change.
func (ag *AuthGate) InvalidateUser(userID int64) {
	ag.CacheResolver.Invalidate(userID)
}

// InvalidateAll empties the profile cache, e.g. after a restore.
func (ag *AuthGate) InvalidateAll() {
	ag.CacheResolver.InvalidateAll()
}

// RequirePermission returns middleware enforcing resourceType:action within
// the selected restaurant.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := Scope(ag.state.CurrentRestaurantID())
			if err := ag.Authorize(r.Context(), action, resourceType, scope); err != nil {
				WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError renders a gate error as 401 or 403.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	lang := i18n.LangFromContext(r.Context())
	if errors.Is(err, gate.ErrUnauthorized) {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", i18n.T(lang, "unauthorized"), nil)
		return
	}
	httpx.JSONError(w, http.StatusForbidden, "forbidden", i18n.T(lang, "forbidden"), nil)
}
