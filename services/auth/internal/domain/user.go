package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/rrucricket/attendance/pkg/apperr"
	"github.com/rrucricket/attendance/pkg/validation"
)

// Valid user roles. Administrators live in their own table, not here.
const (
	RoleUser     = "user"
	RoleCaptain  = "captain"
	RoleInactive = "inactive"
)

var validRoles = map[string]bool{
	RoleUser:     true,
	RoleCaptain:  true,
	RoleInactive: true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

const MinPasswordLength = 6

type User struct {
	ID           int64     `json:"id"`
	Role         string    `json:"role"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u.Role != RoleInactive
}

type UserInfo struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToUserInfo converts User to UserInfo (without sensitive data)
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		Name:       u.Name,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		IsActive:   u.IsActive(),
		CreatedAt:  u.CreatedAt,
	}
}

type Admin struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "user"
	PrincipalAdmin PrincipalKind = "admin"
)

// Principal is either a regular user or an administrator; exactly one of
// User and Admin is set, matching Kind.
type Principal struct {
	Kind  PrincipalKind
	User  *User
	Admin *Admin
}

func UserPrincipal(u *User) (*Principal, error) {
	p := &Principal{Kind: PrincipalUser, User: u}
	return p, p.Validate()
}

func AdminPrincipal(a *Admin) (*Principal, error) {
	p := &Principal{Kind: PrincipalAdmin, Admin: a}
	return p, p.Validate()
}

func (p *Principal) Validate() error {
	switch p.Kind {
	case PrincipalUser:
		if p.User == nil || p.Admin != nil {
			return fmt.Errorf("user principal must carry only a user")
		}
		if p.User.ID == 0 || p.User.Email == "" {
			return fmt.Errorf("user principal missing id or email")
		}
	case PrincipalAdmin:
		if p.Admin == nil || p.User != nil {
			return fmt.Errorf("admin principal must carry only an admin")
		}
		if p.Admin.ID == "" {
			return fmt.Errorf("admin principal missing id")
		}
	default:
		return fmt.Errorf("unknown principal kind %q", p.Kind)
	}
	return nil
}

func (p *Principal) Email() string {
	if p.Kind == PrincipalAdmin {
		return p.Admin.Email
	}
	return p.User.Email
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AdminLoginRequest struct {
	AdminID  string `json:"admin_id" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	User        *UserInfo `json:"user,omitempty"`
	Admin       *Admin    `json:"admin,omitempty"`
}

type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Username *string `json:"username,omitempty" validate:"omitempty,username"`
}

type UpdateUserRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Role *string `json:"role,omitempty" validate:"omitempty,oneof=user captain inactive"`
}

type ListUsersQuery struct {
	Search string
	Limit  int
	Offset int
}

// Normalize methods
func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.Username = strings.TrimSpace(r.Username)
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *AdminLoginRequest) Normalize() {
	r.AdminID = strings.TrimSpace(r.AdminID)
}

func (r *UpdateProfileRequest) Normalize() {
	if r.Name != nil {
		n := strings.TrimSpace(*r.Name)
		r.Name = &n
	}
	if r.Username != nil {
		u := strings.TrimSpace(*r.Username)
		r.Username = &u
	}
}

// Validation methods
func (r *RegisterRequest) Validate() error   { return validation.Struct(r) }
func (r *LoginRequest) Validate() error      { return validation.Struct(r) }
func (r *AdminLoginRequest) Validate() error { return validation.Struct(r) }

func (r *UpdateProfileRequest) Validate() error {
	if r.Name == nil && r.Username == nil {
		return apperr.E(apperr.InvalidArgument, "nothing to update")
	}
	return validation.Struct(r)
}

func (r *UpdateUserRequest) Validate() error {
	if r.Name == nil && r.Role == nil {
		return apperr.E(apperr.InvalidArgument, "nothing to update")
	}
	return validation.Struct(r)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
