package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
	RoleAdmin   Role = "admin"
)

var Roles = []Role{RoleTeacher, RoleStudent, RoleParent, RoleAdmin}

func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

func (r Role) Valid() bool {
	switch r {
	case RoleTeacher, RoleStudent, RoleParent, RoleAdmin:
		return true
	default:
		return false
	}
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	SchoolID  string    `json:"schoolId,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// AuthUser is a user together with the token pair of its current session.
type AuthUser struct {
	User
	TokenPair
}

// Account is a directory entry: the credential record and the user it belongs to.
type Account struct {
	User         AuthUser
	PasswordHash string
}

type DemoAccount struct {
	Email    string `json:"email"`
	Password string `json:"-"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

type UserList struct {
	Users []User `json:"users"`
}
