package session

import "time"

type Session struct {
	ID        string     `gorm:"primaryKey;column:id;type:uuid"`
	UserID    int64      `gorm:"column:user_id;not null;index"`
	IssuedAt  time.Time  `gorm:"column:issued_at;not null"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
}

func (Session) TableName() string {
	return "sessions"
}
