// Package rental holds the pricing and return reconciliation rules for rental
// orders. Every function here is pure: callers pass copies of their records and
// persist the results themselves.
package rental

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MoneyPlaces is the number of decimal places derived tax amounts are rounded to.
const MoneyPlaces = 2

// GSTConfig is the tax snapshot taken when an order is created.
type GSTConfig struct {
	Enabled  bool
	Rate     decimal.Decimal
	Included bool
}

// Item is one line of a rental order.
type Item struct {
	ID                uint
	Quantity          int
	PricePerDay       decimal.Decimal
	ReturnedQuantity  *int
	ReturnStatus      ReturnStatus
	DamageCost        *decimal.Decimal
	DamageDescription string
	MissingNote       string
}

// Order is the aggregate the calculator and resolver work on.
type Order struct {
	StartDate       time.Time
	EndDate         time.Time
	RentalDays      int
	Items           []Item
	GST             GSTConfig
	SecurityDeposit decimal.Decimal
	Cancelled       bool
}

// Totals are the derived monetary fields of an order.
type Totals struct {
	Subtotal   decimal.Decimal
	GSTAmount  decimal.Decimal
	GrandTotal decimal.Decimal
}

// Days returns the explicit rental days or, when unset, the inclusive day
// count of the rental window. The window is checked either way.
func (o Order) Days() (int, error) {
	windowDays, err := RentalDays(o.StartDate, o.EndDate)
	if err != nil {
		return 0, err
	}
	if o.RentalDays != 0 {
		if o.RentalDays < 1 {
			return 0, newValidationError("rental_days", "must be at least 1, got %d", o.RentalDays)
		}
		return o.RentalDays, nil
	}
	return windowDays, nil
}

// RentalDays counts the calendar days from start to end, both inclusive.
func RentalDays(start, end time.Time) (int, error) {
	if start.IsZero() || end.IsZero() {
		return 0, newValidationError("dates", "start and end dates are required")
	}
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if e.Before(s) {
		return 0, newValidationError("end_date", "must not be before start date")
	}
	return int(e.Sub(s).Hours()/24) + 1, nil
}

// ComputeLineTotal returns quantity × pricePerDay × rentalDays.
func ComputeLineTotal(quantity int, pricePerDay decimal.Decimal, rentalDays int) (decimal.Decimal, error) {
	if quantity < 0 {
		return decimal.Zero, newValidationError("quantity", "must not be negative, got %d", quantity)
	}
	if pricePerDay.IsNegative() {
		return decimal.Zero, newValidationError("price_per_day", "must not be negative, got %s", pricePerDay)
	}
	if rentalDays < 1 {
		return decimal.Zero, newValidationError("rental_days", "must be at least 1, got %d", rentalDays)
	}
	return pricePerDay.Mul(decimal.NewFromInt(int64(quantity))).Mul(decimal.NewFromInt(int64(rentalDays))), nil
}

// ComputeOrderTotals sums the line totals of items and applies the GST snapshot.
func ComputeOrderTotals(items []Item, rentalDays int, gst GSTConfig) (Totals, error) {
	if err := gst.validate(); err != nil {
		return Totals{}, err
	}

	subtotal := decimal.Zero
	for _, item := range items {
		line, err := ComputeLineTotal(item.Quantity, item.PricePerDay, rentalDays)
		if err != nil {
			return Totals{}, err
		}
		subtotal = subtotal.Add(line)
	}

	totals := Totals{Subtotal: subtotal, GSTAmount: decimal.Zero, GrandTotal: subtotal}
	if !gst.Enabled {
		return totals, nil
	}
	if gst.Included {
		totals.GSTAmount = subtotal.Mul(gst.Rate).Div(hundred.Add(gst.Rate)).Round(MoneyPlaces)
		return totals, nil
	}
	totals.GSTAmount = subtotal.Mul(gst.Rate).Div(hundred).Round(MoneyPlaces)
	totals.GrandTotal = subtotal.Add(totals.GSTAmount)
	return totals, nil
}

// Price computes the totals of an order from its own items and snapshot.
func (o Order) Price() (Totals, error) {
	if o.SecurityDeposit.IsNegative() {
		return Totals{}, newValidationError("security_deposit", "must not be negative")
	}
	days, err := o.Days()
	if err != nil {
		return Totals{}, err
	}
	return ComputeOrderTotals(o.Items, days, o.GST)
}

func (g GSTConfig) validate() error {
	if !g.Enabled {
		return nil
	}
	if g.Rate.IsNegative() || g.Rate.GreaterThan(hundred) {
		return newValidationError("gst_rate", "must be between 0 and 100, got %s", g.Rate)
	}
	return nil
}
