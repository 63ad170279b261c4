package enums

// UserRole is the register-level role carried in access tokens.
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleCashier UserRole = "cashier"
)

var validUserRoles = []UserRole{UserRoleAdmin, UserRoleCashier}

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	return contains(validUserRoles, r)
}

func (r UserRole) IsAdmin() bool {
	return r == UserRoleAdmin
}

func ParseUserRole(value string) (UserRole, error) {
	return parse(validUserRoles, value, "user role")
}
