package auth

import "fmt"

// Permission actions.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// Permission keys are a closed enumeration: every key the middleware or
// the registry can reference is declared here and seeded at boot, so a
// typo surfaces at startup instead of at request time.
const (
	PermViewUsers   = "view_users"
	PermCreateUsers = "create_users"
	PermEditUsers   = "edit_users"
	PermDeleteUsers = "delete_users"

	PermViewRoles   = "view_roles"
	PermCreateRoles = "create_roles"
	PermEditRoles   = "edit_roles"
	PermDeleteRoles = "delete_roles"

	PermViewCustomers   = "view_customers"
	PermCreateCustomers = "create_customers"
	PermEditCustomers   = "edit_customers"
	PermDeleteCustomers = "delete_customers"

	PermViewProducts   = "view_products"
	PermCreateProducts = "create_products"
	PermEditProducts   = "edit_products"
	PermDeleteProducts = "delete_products"

	PermViewInquiries   = "view_inquiries"
	PermCreateInquiries = "create_inquiries"
	PermEditInquiries   = "edit_inquiries"
	PermDeleteInquiries = "delete_inquiries"

	PermViewSuppliers   = "view_suppliers"
	PermCreateSuppliers = "create_suppliers"
	PermEditSuppliers   = "edit_suppliers"
	PermDeleteSuppliers = "delete_suppliers"

	PermViewPrices   = "view_prices"
	PermCreatePrices = "create_prices"
	PermEditPrices   = "edit_prices"
	PermDeletePrices = "delete_prices"

	PermViewImages   = "view_images"
	PermCreateImages = "create_images"
	PermEditImages   = "edit_images"
	PermDeleteImages = "delete_images"
)

var permissionResources = []string{
	"users", "roles", "customers", "products",
	"inquiries", "suppliers", "prices", "images",
}

var permissionActions = []string{ActionView, ActionCreate, ActionEdit, ActionDelete}

// BuiltinPermissions enumerates every seeded permission: one per
// action per resource. The list never changes at runtime.
var BuiltinPermissions = buildPermissions()

func buildPermissions() []Permission {
	perms := make([]Permission, 0, len(permissionResources)*len(permissionActions))
	for _, res := range permissionResources {
		for _, act := range permissionActions {
			perms = append(perms, Permission{
				Key:      fmt.Sprintf("%s_%s", act, res),
				Resource: res,
				Action:   act,
			})
		}
	}
	return perms
}

// KnownPermissionKey reports whether key belongs to the closed
// enumeration.
func KnownPermissionKey(key string) bool {
	_, ok := builtinKeySet[key]
	return ok
}

var builtinKeySet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(BuiltinPermissions))
	for _, p := range BuiltinPermissions {
		set[p.Key] = struct{}{}
	}
	return set
}()
