package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const audience = "rru-attendance-api"

// Session kinds
const (
	KindUser  = "user"
	KindAdmin = "admin"
)

// Token scopes
const (
	ScopeSession       = "session"
	ScopePasswordReset = "password_reset"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongScope   = errors.New("token scope not allowed here")
)

type Claims struct {
	Sub     int64  `json:"sub"`
	AdminID string `json:"admin_id,omitempty"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Kind    string `json:"kind"`
	Scope   string `json:"scope"`
	jwt.RegisteredClaims
}

// Session is the authenticated principal carried through a request.
type Session struct {
	ID        string    `json:"id"`
	Subject   int64     `json:"subject,omitempty"`
	AdminID   string    `json:"admin_id,omitempty"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Kind == KindAdmin
}

func newToken(claims *Claims, secret string, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Audience:  []string{audience},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// NewSessionToken issues an access token for a user or admin session.
func NewSessionToken(sub int64, email, role, kind, secret string, ttl time.Duration) (string, *Session, error) {
	signed, claims, err := newToken(&Claims{Sub: sub, Email: email, Role: role, Kind: kind, Scope: ScopeSession}, secret, ttl)
	if err != nil {
		return "", nil, err
	}
	return signed, claims.Session(), nil
}

// NewAdminSessionToken issues an expiring admin session bound to adminID.
func NewAdminSessionToken(adminID, email, secret string, ttl time.Duration) (string, *Session, error) {
	signed, claims, err := newToken(&Claims{AdminID: adminID, Email: email, Role: KindAdmin, Kind: KindAdmin, Scope: ScopeSession}, secret, ttl)
	if err != nil {
		return "", nil, err
	}
	return signed, claims.Session(), nil
}

// NewResetToken issues a short-lived token that only authorizes a password change for email.
func NewResetToken(sub int64, email, secret string, ttl time.Duration) (string, *Session, error) {
	signed, claims, err := newToken(&Claims{Sub: sub, Email: email, Kind: KindUser, Scope: ScopePasswordReset}, secret, ttl)
	if err != nil {
		return "", nil, err
	}
	return signed, claims.Session(), nil
}

func Parse(tokenString, secret string) (*Claims, error) {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := tok.Claims.(*Claims); ok && tok.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// ParseScoped parses tokenString and requires the given scope.
func ParseScoped(tokenString, secret, scope string) (*Claims, error) {
	claims, err := Parse(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Scope != scope {
		return nil, ErrWrongScope
	}
	return claims, nil
}

func (c *Claims) Session() *Session {
	s := &Session{
		ID:      c.ID,
		Subject: c.Sub,
		AdminID: c.AdminID,
		Email:   c.Email,
		Role:    c.Role,
		Kind:    c.Kind,
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}
