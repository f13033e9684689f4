package models

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a customer or back-office account.
type User struct {
	Base
	Name            string  `json:"name" gorm:"type:varchar(100);not null"`
	Email           string  `json:"email" gorm:"uniqueIndex:idx_users_email_live,where:deleted_at IS NULL;type:varchar(255);not null"`
	Password        string  `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash
	Role            Role    `json:"role" gorm:"type:varchar(10);not null"`
	Phone           string  `json:"phone,omitempty" gorm:"type:varchar(30)"`
	ShippingAddress Address `json:"shippingAddress" gorm:"embedded;embeddedPrefix:shipping_"`
}

// IsAdmin reports whether the user may use the back-office.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
