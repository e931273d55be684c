package user

import (
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
)

type User struct {
	ID           int64         `json:"id"`
	CompanyID    int64         `json:"company_id"`
	ManagerID    *int64        `json:"manager_id,omitempty"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	PasswordHash string        `json:"-"`
	Role         internal.Role `json:"role"`
	IsActive     bool          `json:"is_active"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == internal.RoleAdmin
}

// PoolMember makes a user eligible for percentage approval at one step of the company chain.
type PoolMember struct {
	CompanyID int64     `json:"company_id"`
	Step      int       `json:"step"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToDataModel() *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		CompanyID:    u.CompanyID,
		ManagerID:    u.ManagerID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role.String(),
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func FromDataModel(m *userDatamodel.User) *User {
	return &User{
		ID:           m.ID,
		CompanyID:    m.CompanyID,
		ManagerID:    m.ManagerID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		Role:         internal.Role(m.Role),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func (p *PoolMember) ToDataModel() *userDatamodel.ApproverPoolMember {
	return &userDatamodel.ApproverPoolMember{
		CompanyID: p.CompanyID,
		Step:      p.Step,
		UserID:    p.UserID,
		CreatedAt: p.CreatedAt,
	}
}

func PoolMemberFromDataModel(m *userDatamodel.ApproverPoolMember) *PoolMember {
	return &PoolMember{
		CompanyID: m.CompanyID,
		Step:      m.Step,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}
