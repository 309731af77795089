package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReturnEvent is the audit row written for every processed return, including
// the full submitted report so a degraded save loses nothing.
type ReturnEvent struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	Reference        string          `json:"reference" gorm:"unique;not null"`
	OrderID          uint            `json:"order_id" gorm:"not null;index"`
	ProcessedBy      *uint           `json:"processed_by"`
	ActualReturnDate time.Time       `json:"actual_return_date" gorm:"not null"`
	LateReturn       bool            `json:"late_return"`
	LateDays         int             `json:"late_days"`
	LateFee          decimal.Decimal `json:"late_fee" gorm:"type:numeric(12,2);not null;default:0"`
	DamageTotal      decimal.Decimal `json:"damage_total" gorm:"type:numeric(12,2);not null;default:0"`
	ResultStatus     string          `json:"result_status" gorm:"type:varchar(32)"`
	Degraded         bool            `json:"degraded"`
	Warnings         string          `json:"warnings" gorm:"type:text"`
	ReportData       string          `json:"report_data" gorm:"type:jsonb"`
	CreatedAt        time.Time       `json:"created_at"`
}
