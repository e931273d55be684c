package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	sessionDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/session"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) auth.RepositoryAPI {
	return &Repository{db: db}
}

func (r *Repository) GetCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "password_hash", "is_active").
		Where("email = ?", email).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &auth.Credentials{UserID: row.ID, PasswordHash: row.PasswordHash, IsActive: row.IsActive}, nil
}

func (r *Repository) GetUser(ctx context.Context, userID int64) (*auth.User, error) {
	var row userDatamodel.User
	if err := r.db.WithContext(ctx).First(&row, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &auth.User{
		ID:        row.ID,
		CompanyID: row.CompanyID,
		Email:     row.Email,
		Name:      row.Name,
		Role:      internal.Role(row.Role),
		IsActive:  row.IsActive,
	}, nil
}

func (r *Repository) CreateSession(ctx context.Context, s *auth.Session) error {
	row := sessionDatamodel.Session{
		ID:        s.ID,
		UserID:    s.UserID,
		IssuedAt:  s.IssuedAt,
		ExpiresAt: s.ExpiresAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) GetSession(ctx context.Context, sessionID string) (*auth.Session, error) {
	var row sessionDatamodel.Session
	if err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrInvalidToken
		}
		return nil, err
	}
	return &auth.Session{
		ID:        row.ID,
		UserID:    row.UserID,
		IssuedAt:  row.IssuedAt,
		ExpiresAt: row.ExpiresAt,
		RevokedAt: row.RevokedAt,
	}, nil
}

// RevokeSession reports whether this call performed the revocation.
func (r *Repository) RevokeSession(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&sessionDatamodel.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", at)
	return result.RowsAffected > 0, result.Error
}
