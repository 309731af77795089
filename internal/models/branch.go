package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Branch holds the GST defaults copied onto every order it creates.
type Branch struct {
	ID                uint             `json:"id" gorm:"primaryKey"`
	Name              string           `json:"name" gorm:"unique;not null"`
	Address           string           `json:"address" gorm:"type:text"`
	Phone             string           `json:"phone"`
	GSTEnabled        bool             `json:"gst_enabled" gorm:"default:false"`
	GSTRate           decimal.Decimal  `json:"gst_rate" gorm:"type:numeric(5,2);not null;default:0"`
	GSTIncluded       bool             `json:"gst_included" gorm:"default:false"`
	LateFeeMultiplier *decimal.Decimal `json:"late_fee_multiplier" gorm:"type:numeric(6,3)"`
	IsActive          bool             `json:"is_active" gorm:"default:true"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	DeletedAt         gorm.DeletedAt   `json:"deleted_at" gorm:"index"`
}

type Customer struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	BranchID  uint           `json:"branch_id" gorm:"not null;index"`
	Name      string         `json:"name" gorm:"not null"`
	Phone     string         `json:"phone" gorm:"index"`
	Email     string         `json:"email"`
	Address   string         `json:"address" gorm:"type:text"`
	IDProof   string         `json:"id_proof"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}
