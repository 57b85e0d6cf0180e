package auth

// Principal is the authenticated identity attached to a request. It is
// built from verified access-token claims and carries the permission
// snapshot taken at issuance time.
type Principal struct {
	UserID      string
	Email       string
	RoleKey     string
	Permissions map[string]struct{}
}

// NewPrincipal constructs a principal from claim values.
func NewPrincipal(userID, email, roleKey string, permissionKeys []string) Principal {
	set := make(map[string]struct{}, len(permissionKeys))
	for _, k := range permissionKeys {
		set[k] = struct{}{}
	}
	return Principal{UserID: userID, Email: email, RoleKey: roleKey, Permissions: set}
}

// HasPermission reports whether the principal holds the permission key.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}
