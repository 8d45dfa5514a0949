package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleGuard        Role = "guard"
	RoleSupervisor   Role = "supervisor"
	RoleAdmin        Role = "admin"
	RoleHR           Role = "hr"
	RoleCCTVOperator Role = "cctv_operator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleGuard, RoleSupervisor, RoleAdmin, RoleHR, RoleCCTVOperator:
		return true
	}
	return false
}

type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"uniqueIndex;not null"`
	Name      string         `json:"name" gorm:"not null"`
	Password  string         `json:"-" gorm:"not null"`
	Role      Role           `json:"role" gorm:"type:varchar(20);default:guard"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
