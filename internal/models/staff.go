package models

import (
	"time"

	"gorm.io/gorm"
)

type Staff struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"not null"`
	Email       string         `json:"email" gorm:"unique;not null"`
	PhoneNumber string         `json:"phone_number"`
	Role        string         `json:"role" gorm:"default:'staff'"` // admin, manager, staff
	BranchID    *uint          `json:"branch_id"`
	PinHash     string         `json:"-" gorm:"not null"`
	IsActive    bool           `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}

type StaffRole string

const (
	RoleAdmin   StaffRole = "admin"
	RoleManager StaffRole = "manager"
	RoleStaff   StaffRole = "staff"
)
