package models

// Role is the closed set of staff roles.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleCashier    Role = "cashier"
	RoleDriver     Role = "driver"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleCashier, RoleDriver, RoleSuperAdmin:
		return true
	}
	return false
}

// Privileged roles always hold the full permission set.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Permissions is the per-user capability set.
type Permissions struct {
	CanAccessAdmin     bool `json:"canAccessAdmin"`
	CanManageMenu      bool `json:"canManageMenu"`
	CanManageInventory bool `json:"canManageInventory"`
	CanManageUsers     bool `json:"canManageUsers"`
	CanViewReports     bool `json:"canViewReports"`
	CanEditPrices      bool `json:"canEditPrices"`
}

// FullPermissions grants everything.
func FullPermissions() Permissions {
	return Permissions{
		CanAccessAdmin:     true,
		CanManageMenu:      true,
		CanManageInventory: true,
		CanManageUsers:     true,
		CanViewReports:     true,
		CanEditPrices:      true,
	}
}

// DefaultPermissions returns the initial set for a newly created user of the given role.
func DefaultPermissions(role Role) Permissions {
	if role.Privileged() {
		return FullPermissions()
	}
	return Permissions{}
}

// User is a staff member of one restaurant.
// Password holds the stored credential exactly as persisted.
type User struct {
	ID           int64       `json:"id"`
	RestaurantID string      `json:"restaurantId"`
	Username     string      `json:"username"`
	Password     string      `json:"password,omitempty"`
	Role         Role        `json:"role"`
	Permissions  Permissions `json:"permissions"`
}

func (u User) GetRestaurantID() string { return u.RestaurantID }

// Effective returns the permissions actually in force for the user.
func (u User) Effective() Permissions {
	if u.Role.Privileged() {
		return FullPermissions()
	}
	return u.Permissions
}

// Public strips the stored credential for API responses.
func (u User) Public() User {
	u.Password = ""
	return u
}
