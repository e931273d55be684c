package auth

import (
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/golang-jwt/jwt/v5"
)

// User is the authenticated principal carried on the request context.
type User struct {
	ID        int64         `json:"id"`
	CompanyID int64         `json:"company_id"`
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	Role      internal.Role `json:"role"`
	IsActive  bool          `json:"-"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == internal.RoleAdmin
}

type Credentials struct {
	UserID       int64
	PasswordHash string
	IsActive     bool
}

// Session backs a token pair; revoking it invalidates both tokens.
type Session struct {
	ID        string
	UserID    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims represents JWT token claims. RegisteredClaims.ID holds the session id.
type Claims struct {
	UserID    int64     `json:"uid"`
	CompanyID int64     `json:"cid"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"typ"`
	jwt.RegisteredClaims
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenGenerator signs and verifies tokens of one type at a time.
type TokenGenerator interface {
	Generate(user *User, sessionID string, tokenType TokenType) (string, error)
	Validate(tokenString string, tokenType TokenType) (*Claims, error)
	TTL(tokenType TokenType) time.Duration
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}
