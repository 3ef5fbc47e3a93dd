package rbac

// Operator roles carried in admin tokens. Keep these stable; tokens minted
// by operator tooling depend on them.
const (
	RoleSupport    = "support"
	RoleOperator   = "operator"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }
