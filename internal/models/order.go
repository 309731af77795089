package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RentalOrder struct {
	ID                   uint            `json:"id" gorm:"primaryKey"`
	OrderNumber          string          `json:"order_number" gorm:"unique;not null"`
	BranchID             uint            `json:"branch_id" gorm:"not null;index"`
	CustomerID           uint            `json:"customer_id" gorm:"not null;index"`
	StartDate            time.Time       `json:"start_date" gorm:"not null"`
	EndDate              time.Time       `json:"end_date" gorm:"not null"`
	RentalDays           int             `json:"rental_days" gorm:"not null"`
	GSTEnabled           bool            `json:"gst_enabled"`
	GSTRate              decimal.Decimal `json:"gst_rate" gorm:"type:numeric(5,2);not null;default:0"`
	GSTIncluded          bool            `json:"gst_included"`
	SecurityDeposit      decimal.Decimal `json:"security_deposit" gorm:"type:numeric(12,2);not null;default:0"`
	Subtotal             decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null;default:0"`
	GSTAmount            decimal.Decimal `json:"gst_amount" gorm:"type:numeric(12,2);not null;default:0"`
	GrandTotal           decimal.Decimal `json:"grand_total" gorm:"type:numeric(12,2);not null;default:0"`
	Status               string          `json:"status" gorm:"type:varchar(32);not null;default:'scheduled'"`
	LateReturn           bool            `json:"late_return"`
	LateFee              decimal.Decimal `json:"late_fee" gorm:"type:numeric(12,2);not null;default:0"`
	DamageTotal          decimal.Decimal `json:"damage_total" gorm:"type:numeric(12,2);not null;default:0"`
	ActualReturnDate     *time.Time      `json:"actual_return_date"`
	NeedsReview          bool            `json:"needs_review" gorm:"default:false"`
	CancelledAt          *time.Time      `json:"cancelled_at"`
	Notes                string          `json:"notes" gorm:"type:text"`
	CalculationTimestamp time.Time       `json:"calculation_timestamp"`
	CreatedBy            uint            `json:"created_by" gorm:"not null"`
	Items                []RentalItem    `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	DeletedAt            gorm.DeletedAt  `json:"deleted_at" gorm:"index"`
}

// Cancelled reports whether the order was cancelled by staff.
func (o *RentalOrder) Cancelled() bool {
	return o.CancelledAt != nil
}

// HasReturnProgress reports whether any item already recorded a return.
func (o *RentalOrder) HasReturnProgress() bool {
	for _, item := range o.Items {
		if item.ReturnedQuantity != nil && *item.ReturnedQuantity > 0 {
			return true
		}
		if item.ReturnStatus != nil && *item.ReturnStatus != "" && *item.ReturnStatus != "not_yet_returned" {
			return true
		}
	}
	return false
}
