package utils

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "email"
	UserRoleKey  contextKey = "role"
	UserNameKey  contextKey = "full_name"
)

const (
	RoleCustomer  = "customer"
	RoleShopOwner = "shop_owner"
)
