package model

import "time"

const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleTrader     = "trader"
)

const (
	RiskProfileConservative = "conservative"
	RiskProfileModerate     = "moderate"
	RiskProfileAggressive   = "aggressive"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	FullName     string    `gorm:"size:100;not null" json:"full_name"`
	Role         string    `gorm:"size:20;not null;default:trader" json:"role"`
	RiskProfile  string    `gorm:"size:20;default:moderate" json:"risk_profile"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	ManagerID    *uint     `gorm:"index" json:"manager_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Manager *User `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
}

func (User) TableName() string {
	return "users"
}
