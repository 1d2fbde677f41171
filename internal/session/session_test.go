package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/config"
	"github.com/diewo77/foodcore/internal/licensing"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/staff"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"github.com/diewo77/foodcore/internal/tenant"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeTasks struct{ started, stopped int }

func (f *fakeTasks) Start(context.Context) { f.started++ }
func (f *fakeTasks) Stop()                 { f.stopped++ }

type fixture struct {
	m     *Manager
	st    *state.State
	lic   *licensing.Service
	dir   *tenant.Directory
	staff *staff.Service
	tasks *fakeTasks
}

func setupTestManager(t *testing.T) fixture {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&store.Entry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	st := state.New(store.New(db, zap.NewNop()), zap.NewNop(), now)
	st.Load(context.Background())
	f := fixture{
		st:    st,
		lic:   licensing.NewService(st, zap.NewNop()),
		dir:   tenant.NewDirectory(st, zap.NewNop()),
		staff: staff.NewService(st, zap.NewNop()),
		tasks: &fakeTasks{},
	}
	owner := config.OwnerConfig{Username: "superadmin", Password: "superadmin"}
	f.m = NewManager(st, f.lic, f.staff, owner, f.tasks, zap.NewNop())
	return f
}

// activate creates a restaurant, redeems its code and creates the admin.
func (f fixture) activate(t *testing.T, id string) models.User {
	ctx := context.Background()
	if _, err := f.dir.Add(ctx, tenant.NewRestaurant{ID: id, Name: id}); err != nil {
		t.Fatalf("add restaurant: %v", err)
	}
	code, res := f.lic.GenerateCode(ctx, id)
	if !res.OK() {
		t.Fatalf("generate code: %s", res)
	}
	if res := f.lic.RedeemCode(ctx, code); !res.OK() {
		t.Fatalf("redeem: %s", res)
	}
	admin, err := f.lic.CreateAdmin(ctx, id, "boss", "pw")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return admin
}

func TestEnter_Phases(t *testing.T) {
	f := setupTestManager(t)
	ctx := context.Background()

	if e := f.m.Enter(ctx); e.Phase != licensing.PhaseNoRestaurants {
		t.Fatalf("empty system: %+v", e)
	}
	_, _ = f.dir.Add(ctx, tenant.NewRestaurant{ID: "r1", Name: "One"})
	if e := f.m.Enter(ctx); e.Phase != licensing.PhaseAwaitingFirstActivation {
		t.Fatalf("unactivated system: %+v", e)
	}

	code, _ := f.lic.GenerateCode(ctx, "r1")
	f.lic.RedeemCode(ctx, code)
	if e := f.m.Enter(ctx); e.Phase != licensing.PhasePendingAdminCreation || e.RestaurantID != "r1" {
		t.Fatalf("after redeem: %+v", e)
	}
	if _, err := f.lic.CreateAdmin(ctx, "r1", "boss", "pw"); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	e := f.m.Enter(ctx)
	if e.Phase != licensing.PhaseActive || !e.LoginRequired || e.LoggedIn {
		t.Fatalf("before login: %+v", e)
	}
	if _, err := f.m.Login(ctx, "boss", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	e = f.m.Enter(ctx)
	if !e.LoggedIn || e.LoginRequired || e.User == nil || e.User.Username != "boss" {
		t.Fatalf("after login: %+v", e)
	}

	f.m.SwitchRestaurant(ctx)
	if e := f.m.Enter(ctx); e.Phase != licensing.PhaseReady || e.LoggedIn {
		t.Fatalf("after switch: %+v", e)
	}
}

func TestEnter_DropsMissingRestaurant(t *testing.T) {
	f := setupTestManager(t)
	ctx := context.Background()
	f.activate(t, "r1")
	f.st.SetCurrentRestaurantID(ctx, "gone")

	if e := f.m.Enter(ctx); e.Phase != licensing.PhaseReady {
		t.Fatalf("got %+v", e)
	}
	if got := f.st.CurrentRestaurantID(); got != "" {
		t.Fatalf("stale id kept: %q", got)
	}
}

func TestLogin(t *testing.T) {
	f := setupTestManager(t)
	ctx := context.Background()
	f.activate(t, "r1")

	subject, err := f.m.Login(ctx, "superadmin", "superadmin")
	if err != nil || subject != auth.OwnerSubject || !f.m.IsOwner() {
		t.Fatalf("owner login: %d %v", subject, err)
	}
	if e := f.m.Enter(ctx); !e.Owner {
		t.Fatalf("owner console expected: %+v", e)
	}
	f.m.Logout()
	if f.m.IsOwner() {
		t.Fatalf("owner still logged in")
	}

	if _, err := f.m.Login(ctx, "boss", "wrong"); !errors.Is(err, staff.ErrInvalidCredentials) {
		t.Fatalf("bad password: got %v", err)
	}

	f.m.SwitchRestaurant(ctx)
	if _, err := f.m.Login(ctx, "boss", "pw"); !errors.Is(err, ErrNoRestaurant) {
		t.Fatalf("no restaurant: got %v", err)
	}
}

func TestLogin_ScopedToSelectedRestaurant(t *testing.T) {
	f := setupTestManager(t)
	ctx := context.Background()
	f.activate(t, "r1")
	f.activate(t, "r2")
	if _, err := f.staff.Add(ctx, "r1", staff.NewUser{Username: "ali", Password: "x", Role: models.RoleCashier}); err != nil {
		t.Fatalf("add user: %v", err)
	}

	// r2 is selected after its activation
	if _, err := f.m.Login(ctx, "ali", "x"); !errors.Is(err, staff.ErrInvalidCredentials) {
		t.Fatalf("user of another restaurant logged in: %v", err)
	}
	if err := f.m.Select(ctx, "r1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := f.m.Login(ctx, "ali", "x"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestSelect(t *testing.T) {
	f := setupTestManager(t)
	ctx := context.Background()
	f.activate(t, "r1")
	_, _ = f.dir.Add(ctx, tenant.NewRestaurant{ID: "r2", Name: "Two"})

	if err := f.m.Select(ctx, "r2"); !errors.Is(err, ErrNotSelectable) {
		t.Fatalf("unactivated: got %v", err)
	}
	if err := f.m.Select(ctx, "nope"); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("unknown: got %v", err)
	}
	_, _ = f.m.Login(ctx, "boss", "pw")
	if err := f.m.Select(ctx, "r1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, ok := f.m.CurrentUser(); ok {
		t.Fatalf("selecting a restaurant must log out")
	}
}

func TestVerifyAndInvalidate(t *testing.T) {
	f := setupTestManager(t)
	ctx := context.Background()
	admin := f.activate(t, "r1")

	if f.m.Verify(ctx, admin.ID) {
		t.Fatalf("verified before login")
	}
	subject, _ := f.m.Login(ctx, "boss", "pw")
	if !f.m.Verify(ctx, subject) || f.m.Verify(ctx, subject+1) || f.m.Verify(ctx, auth.OwnerSubject) {
		t.Fatalf("verify mismatch")
	}
	f.m.Invalidate(ctx)
	if f.m.Verify(ctx, subject) {
		t.Fatalf("verified after invalidate")
	}
}

func TestVerify_RestaurantLeavesActivePhase(t *testing.T) {
	ctx := context.Background()
	yesterday := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		leave func(f fixture) error
	}{
		{"subscription expired", func(f fixture) error {
			_, err := f.dir.UpdateSubscription(ctx, "r1", &yesterday)
			return err
		}},
		{"activation reset", func(f fixture) error {
			if res := f.lic.ResetActivation(ctx, "r1"); !res.OK() {
				return errors.New(string(res))
			}
			return nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestManager(t)
			f.activate(t, "r1")
			subject, err := f.m.Login(ctx, "boss", "pw")
			if err != nil || !f.m.Verify(ctx, subject) {
				t.Fatalf("login: %v", err)
			}
			if err := tt.leave(f); err != nil {
				t.Fatalf("leave active phase: %v", err)
			}
			if f.m.Verify(ctx, subject) {
				t.Fatal("session still verified outside the active phase")
			}
		})
	}
}

func TestStartClose(t *testing.T) {
	f := setupTestManager(t)
	f.m.Start(context.Background())
	f.m.Close()
	if f.tasks.started != 1 || f.tasks.stopped != 1 {
		t.Fatalf("lifecycle calls: %+v", f.tasks)
	}
}
