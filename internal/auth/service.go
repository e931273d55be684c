package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type RepositoryAPI interface {
	GetCredentials(ctx context.Context, email string) (*Credentials, error)
	GetUser(ctx context.Context, userID int64) (*User, error)
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	RevokeSession(ctx context.Context, sessionID string, at time.Time) (bool, error)
}

type Service struct {
	repo           RepositoryAPI
	tokenGenerator TokenGenerator
	bcryptCost     int
	logger         *slog.Logger
	now            func() time.Time
}

func NewService(repo RepositoryAPI, tokenGen TokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
		logger:         logger,
		now:            time.Now,
	}
}

// Authenticate validates credentials and opens a new session.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	creds, err := s.repo.GetCredentials(ctx, dto.Email)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return AuthTokens{}, internal.ErrInvalidCredentials
		}
		s.logger.Error("failed to load credentials", "error", err)
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(dto.Password)); err != nil {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}
	if !creds.IsActive {
		return AuthTokens{}, internal.ErrUserInactive
	}

	user, err := s.repo.GetUser(ctx, creds.UserID)
	if err != nil {
		return AuthTokens{}, err
	}

	return s.IssueTokens(ctx, user)
}

// IssueTokens opens a session for an already verified user.
func (s *Service) IssueTokens(ctx context.Context, user *User) (AuthTokens, error) {
	now := s.now()
	session := &Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenGenerator.TTL(TokenTypeRefresh)),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to create session", err)
	}

	accessToken, err := s.tokenGenerator.Generate(user, session.ID, TokenTypeAccess)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign access token", err)
	}
	refreshToken, err := s.tokenGenerator.Generate(user, session.ID, TokenTypeRefresh)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign refresh token", err)
	}

	s.logger.Info("session issued", "user_id", user.ID, "session_id", session.ID)

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokenGenerator.TTL(TokenTypeAccess).Seconds()),
	}, nil
}

// RefreshTokens rotates the session behind a refresh token.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.Validate(refreshToken, TokenTypeRefresh)
	if err != nil {
		return AuthTokens{}, err
	}

	if _, err := s.activeSession(ctx, claims.ID); err != nil {
		return AuthTokens{}, err
	}

	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return AuthTokens{}, err
	}

	// a refresh token is single use; losing the revoke race means another refresh won
	revoked, err := s.repo.RevokeSession(ctx, claims.ID, s.now())
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to revoke session", err)
	}
	if !revoked {
		return AuthTokens{}, internal.ErrSessionRevoked
	}

	return s.IssueTokens(ctx, user)
}

// ValidateAccessToken resolves an access token to the current state of its user.
func (s *Service) ValidateAccessToken(ctx context.Context, tokenString string) (*User, error) {
	claims, err := s.tokenGenerator.Validate(tokenString, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if _, err := s.activeSession(ctx, claims.ID); err != nil {
		return nil, err
	}
	return s.activeUser(ctx, claims.UserID)
}

func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokenGenerator.Validate(accessToken, TokenTypeAccess)
	if err != nil {
		return err
	}
	if _, err := s.repo.RevokeSession(ctx, claims.ID, s.now()); err != nil {
		return internal.NewInternalError("failed to revoke session", err)
	}
	s.logger.Info("session revoked", "user_id", claims.UserID, "session_id", claims.ID)
	return nil
}

func (s *Service) activeSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, internal.ErrSessionRevoked) {
			return nil, err
		}
		return nil, internal.ErrInvalidToken
	}
	if !session.Active(s.now()) {
		return nil, internal.ErrSessionRevoked
	}
	return session, nil
}

func (s *Service) activeUser(ctx context.Context, userID int64) (*User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, internal.ErrUserInactive
	}
	return user, nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
