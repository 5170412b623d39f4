package models

// Role controls which pages and companies a user can reach.
type Role string

const (
	RoleAnalyst       Role = "analyst"
	RoleCEO           Role = "ceo"
	RoleTopManagement Role = "top_management"
)

// SeesAllCompanies reports whether the role has group-wide company visibility.
// A CEO only sees explicitly granted companies; unknown roles see nothing.
func (r Role) SeesAllCompanies() bool {
	return r == RoleAnalyst || r == RoleTopManagement
}

// User is a login account inside one parent group.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}
