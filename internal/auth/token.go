package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/golang-jwt/jwt/v5"
)

func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
	}
}

func (j *JWTTokenGenerator) TTL(tokenType TokenType) time.Duration {
	if tokenType == TokenTypeRefresh {
		return j.RefreshTokenTTL
	}
	return j.AccessTokenTTL
}

func (j *JWTTokenGenerator) secret(tokenType TokenType) []byte {
	if tokenType == TokenTypeRefresh {
		return j.RefreshTokenSecret
	}
	return j.AccessTokenSecret
}

func (j *JWTTokenGenerator) Generate(user *User, sessionID string, tokenType TokenType) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Email:     user.Email,
		Role:      user.Role.String(),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TTL(tokenType))),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret(tokenType))
}

// Validate verifies signature and expiry with the secret for tokenType and rejects tokens of the other type.
func (j *JWTTokenGenerator) Validate(tokenString string, tokenType TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret(tokenType), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != tokenType || claims.ID == "" {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
