package staff

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/diewo77/foodcore/internal/auth"
	"github.com/diewo77/foodcore/internal/models"
	"github.com/diewo77/foodcore/internal/state"
	"github.com/diewo77/foodcore/internal/store"
	"github.com/diewo77/foodcore/internal/validation"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestService(t *testing.T) *Service {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&store.Entry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := state.New(store.New(db, zap.NewNop()), zap.NewNop(), nil)
	st.Load(context.Background())
	return NewService(st, zap.NewNop())
}

func TestAdd_DefaultPermissions(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()

	admin, err := s.Add(ctx, "r1", NewUser{Username: "boss", Password: "pw", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if admin.Permissions != models.FullPermissions() {
		t.Errorf("admin must get the full set: %+v", admin.Permissions)
	}
	cashier, err := s.Add(ctx, "r1", NewUser{Username: "cash", Password: "pw", Role: models.RoleCashier})
	if err != nil {
		t.Fatalf("add cashier: %v", err)
	}
	if cashier.Permissions != (models.Permissions{}) {
		t.Errorf("cashier must start with nothing: %+v", cashier.Permissions)
	}
	if cashier.ID <= admin.ID {
		t.Errorf("ids must increase: %d then %d", admin.ID, cashier.ID)
	}
}

func TestAdd_Validation(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	_, _ = s.Add(ctx, "r1", NewUser{Username: "ali", Password: "pw", Role: models.RoleCashier})

	tests := []struct {
		name  string
		in    NewUser
		field string
	}{
		{"missing username", NewUser{Password: "pw", Role: models.RoleCashier}, "username"},
		{"missing password", NewUser{Username: "x", Role: models.RoleCashier}, "password"},
		{"superadmin in tenant", NewUser{Username: "x", Password: "pw", Role: models.RoleSuperAdmin}, "role"},
		{"duplicate username", NewUser{Username: "ALI", Password: "pw", Role: models.RoleDriver}, "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Add(ctx, "r1", tt.in)
			var v validation.Violations
			if !errors.As(err, &v) || v[tt.field] == "" {
				t.Fatalf("expected violation on %s, got %v", tt.field, err)
			}
		})
	}

	if _, err := s.Add(ctx, "r2", NewUser{Username: "ali", Password: "pw", Role: models.RoleCashier}); err != nil {
		t.Fatalf("usernames are unique per restaurant only: %v", err)
	}
}

func TestUpdatePermissions(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	admin, _ := s.Add(ctx, "r1", NewUser{Username: "boss", Password: "pw", Role: models.RoleAdmin})
	owner, _ := s.Add(ctx, "r1", NewUser{Username: "own", Password: "pw", Role: models.RoleOwner})
	cashier, _ := s.Add(ctx, "r1", NewUser{Username: "cash", Password: "pw", Role: models.RoleCashier})

	for _, id := range []int64{admin.ID, owner.ID} {
		if _, err := s.UpdatePermissions(ctx, "r1", id, models.Permissions{}); !errors.Is(err, ErrImmutablePermissions) {
			t.Fatalf("expected ErrImmutablePermissions, got %v", err)
		}
	}
	got, _ := s.Get("r1", admin.ID)
	if got.Permissions != models.FullPermissions() {
		t.Fatalf("admin permissions changed: %+v", got.Permissions)
	}

	perms := models.Permissions{CanViewReports: true}
	u, err := s.UpdatePermissions(ctx, "r1", cashier.ID, perms)
	if err != nil || u.Permissions != perms {
		t.Fatalf("cashier update: %+v %v", u, err)
	}
	if _, err := s.UpdatePermissions(ctx, "r2", cashier.ID, perms); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other tenant must not see the user, got %v", err)
	}
}

func TestUpdate_KeepsPrivilegedFullSet(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	u, _ := s.Add(ctx, "r1", NewUser{Username: "cash", Password: "pw", Role: models.RoleCashier})

	promoted, err := s.Update(ctx, "r1", u.ID, Changes{Username: "cash", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if promoted.Permissions != models.FullPermissions() {
		t.Fatalf("promoted admin must get the full set: %+v", promoted.Permissions)
	}
	if promoted.Password != "pw" {
		t.Fatalf("empty password must keep the old one")
	}
}

func TestDriversAndDelete(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	d, _ := s.Add(ctx, "r1", NewUser{Username: "drv", Password: "pw", Role: models.RoleDriver})
	_, _ = s.Add(ctx, "r1", NewUser{Username: "cash", Password: "pw", Role: models.RoleCashier})
	_, _ = s.Add(ctx, "r2", NewUser{Username: "drv2", Password: "pw", Role: models.RoleDriver})

	drivers := s.Drivers("r1")
	if len(drivers) != 1 || drivers[0].ID != d.ID {
		t.Fatalf("unexpected drivers: %+v", drivers)
	}
	if err := s.Delete(ctx, "r1", d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(s.Drivers("r1")) != 0 {
		t.Fatalf("driver not deleted")
	}
	if err := s.Delete(ctx, "r1", d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	_, _ = s.Add(ctx, "r1", NewUser{Username: "plain", Password: "1234", Role: models.RoleCashier})
	hashed, _ := auth.HashPassword("secret")
	_, _ = s.Add(ctx, "r1", NewUser{Username: "hashed", Password: hashed, Role: models.RoleCashier})

	tests := []struct {
		name, restaurant, user, pass string
		ok                           bool
	}{
		{"plain text", "r1", "plain", "1234", true},
		{"wrong password", "r1", "plain", "0000", false},
		{"bcrypt stored", "r1", "hashed", "secret", true},
		{"other restaurant", "r2", "plain", "1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Authenticate(tt.restaurant, tt.user, tt.pass)
			if tt.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}
