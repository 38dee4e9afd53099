package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/arkofgod/ark/core"
)

// Roles
const (
	// Admin
	RoleAdmin         = "admin:"
	RoleAdminReviewer = "admin:reviewer"

	// Member
	RoleMember = "member:"
)

var (
	AdminRoles  = []string{RoleAdmin, RoleAdminReviewer}
	MemberRoles = []string{RoleMember}
	AllRoles    = append(append([]string{}, AdminRoles...), MemberRoles...)
)

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Contact      string     `json:"contact"`
	Country      string     `json:"country"`
	IsActive     *bool      `json:"is_active"`
	Roles        []string   `json:"roles"`
	PasswordHash []byte     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
	LastLogin    *time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsMember() bool {
	return u.RoleStartsWith(RoleMember)
}

// NewUser contains information needed to create a staff User from the admin CLI.
type NewUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"required,min=3,max=150,alphanum_"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
}

// NewAccount contains the information needed to provision a member account out of an application.
// PasswordHash is stored as is.
type NewAccount struct {
	Username     string
	Email        string
	Name         string
	Contact      string
	Country      string
	PasswordHash []byte
}

// ContactUpdate holds the contact fields an approved application refreshes on its account.
type ContactUpdate struct {
	Name    string
	Email   string
	Contact string
	Country string
}

// GetFilter selects a single User. Only the first set field is used.
type GetFilter struct {
	ID              string
	Username        string
	UsernameOrEmail string
}
