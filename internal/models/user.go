package models

// User roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	BaseModel
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	Role         string    `gorm:"default:customer" json:"role"`
	Wishlist     []Product `gorm:"many2many:user_wishlist" json:"wishlist,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
