package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RentalItem struct {
	ID                uint             `json:"id" gorm:"primaryKey"`
	OrderID           uint             `json:"order_id" gorm:"not null;index"`
	ItemName          string           `json:"item_name" gorm:"not null"`
	Description       string           `json:"description" gorm:"type:text"`
	PhotoURL          string           `json:"photo_url"`
	Quantity          int              `json:"quantity" gorm:"not null"`
	PricePerDay       decimal.Decimal  `json:"price_per_day" gorm:"type:numeric(12,2);not null"`
	LineTotal         decimal.Decimal  `json:"line_total" gorm:"type:numeric(12,2);not null"`
	ReturnedQuantity  *int             `json:"returned_quantity"`
	ReturnStatus      *string          `json:"return_status" gorm:"type:varchar(20)"` // null, not_yet_returned, returned, missing
	DamageCost        *decimal.Decimal `json:"damage_cost" gorm:"type:numeric(12,2)"`
	DamageDescription string           `json:"damage_description" gorm:"type:text"`
	MissingNote       string           `json:"missing_note" gorm:"type:text"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	DeletedAt         gorm.DeletedAt   `json:"deleted_at" gorm:"index"`
}
