package gate

import "strings"

// Permission is written "resource:action", e.g. "menu:manage".
type Permission string

// Wildcards for super permissions
const (
	WildcardAll              = "*"
	PermissionAll Permission = "*:*"
)

func NewPermission(resource string, action Action) Permission {
	return Permission(resource + ":" + string(action))
}

// Parse splits a permission; malformed values yield empty parts.
func (p Permission) Parse() (resource string, action Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

// Matches reports whether holding p grants requested. "*:*" grants
// everything and "menu:*" grants every action on menu.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionAll || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	return res != "" && res == reqRes && string(act) == WildcardAll
}
