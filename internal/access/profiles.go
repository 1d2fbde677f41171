// Package access maps staff roles and permission flags onto gate profiles
// and wires the HTTP authorization middleware.
package access

import (
	"github.com/diewo77/foodcore/internal/gate"
	"github.com/diewo77/foodcore/internal/models"
)

// Resource types checked by the gate.
const (
	ResourceAdmin       = "admin"
	ResourceMenu        = "menu"
	ResourceInventory   = "inventory"
	ResourceUsers       = "users"
	ResourceReports     = "reports"
	ResourcePrices      = "prices"
	ResourceOrders      = "orders"
	ResourceCustomers   = "customers"
	ResourceRestaurants = "restaurants"
)

var (
	PermAdminAccess     = gate.NewPermission(ResourceAdmin, gate.ActionAccess)
	PermMenuManage      = gate.NewPermission(ResourceMenu, gate.ActionManage)
	PermMenuView        = gate.NewPermission(ResourceMenu, gate.ActionView)
	PermInventoryManage = gate.NewPermission(ResourceInventory, gate.ActionManage)
	PermUsersManage     = gate.NewPermission(ResourceUsers, gate.ActionManage)
	PermReportsView     = gate.NewPermission(ResourceReports, gate.ActionView)
	PermPricesEdit      = gate.NewPermission(ResourcePrices, gate.ActionEdit)
	PermOrdersOperate   = gate.NewPermission(ResourceOrders, gate.ActionOperate)
	PermCustomersManage = gate.NewPermission(ResourceCustomers, gate.ActionManage)
)

// baseline is granted to every logged-in staff member.
var baseline = []gate.Permission{PermOrdersOperate, PermCustomersManage, PermMenuView}

// PermissionsFor translates the permission flags.
func PermissionsFor(p models.Permissions) []gate.Permission {
	perms := append([]gate.Permission{}, baseline...)
	if p.CanAccessAdmin {
		perms = append(perms, PermAdminAccess)
	}
	if p.CanManageMenu {
		perms = append(perms, PermMenuManage)
	}
	if p.CanManageInventory {
		perms = append(perms, PermInventoryManage)
	}
	if p.CanManageUsers {
		perms = append(perms, PermUsersManage)
	}
	if p.CanViewReports {
		perms = append(perms, PermReportsView)
	}
	if p.CanEditPrices {
		perms = append(perms, PermPricesEdit)
	}
	return perms
}

// ProfileFor builds the profile of a staff member from the permissions in
// force for them. A superadmin holds every permission.
func ProfileFor(u models.User) gate.Profile {
	if u.Role == models.RoleSuperAdmin {
		return gate.NewStaticProfile(string(u.Role), gate.PermissionAll)
	}
	return gate.NewStaticProfile(string(u.Role), PermissionsFor(u.Effective())...)
}

// OwnerProfile is the system owner console profile.
func OwnerProfile() gate.Profile {
	return gate.NewStaticProfile("system-owner", gate.PermissionAll)
}
