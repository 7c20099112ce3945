package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner      = "owner"
	RoleOperator   = "operator"
	RoleDispatcher = "dispatcher"
	RoleSuperAdmin = "super_admin"
	RolePlatformOp = "platform_operator" // hidden role
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RolePlatformOp }
