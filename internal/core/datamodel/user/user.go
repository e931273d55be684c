package user

import "time"

type User struct {
	ID           int64     `gorm:"primaryKey"`
	CompanyID    int64     `gorm:"column:company_id;not null;index"`
	ManagerID    *int64    `gorm:"column:manager_id;index"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	Name         string    `gorm:"column:name;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Role         string    `gorm:"column:role;not null"`
	IsActive     bool      `gorm:"column:is_active;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// ApproverPoolMember makes a user eligible for percentage-based approval at one step of the company chain.
type ApproverPoolMember struct {
	ID        int64     `gorm:"primaryKey"`
	CompanyID int64     `gorm:"column:company_id;not null;uniqueIndex:idx_pool_member"`
	Step      int       `gorm:"column:step;not null;uniqueIndex:idx_pool_member"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_pool_member"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ApproverPoolMember) TableName() string {
	return "approver_pool_members"
}
