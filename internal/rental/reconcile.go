package rental

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReturnReport is the cumulative return state of one item at the time it was
// recorded. ReturnedQuantity replaces the stored value; it is not a delta.
type ReturnReport struct {
	ItemID            uint
	ReturnedQuantity  int
	DamageCost        *decimal.Decimal
	DamageDescription string
	MissingNote       string
	ActualReturnDate  time.Time
}

func (r ReturnReport) hasNote() bool {
	return strings.TrimSpace(r.MissingNote) != "" || strings.TrimSpace(r.DamageDescription) != ""
}

// ReturnOutcome is the result of applying a single report.
type ReturnOutcome struct {
	Item       Item
	LateReturn bool
}

// LateFeePolicy scales the late fee. A multiplier of 1 charges one regular
// rental day of the whole order per late day.
type LateFeePolicy struct {
	Multiplier decimal.Decimal
}

// DefaultLateFeePolicy charges one regular rental day per late day.
func DefaultLateFeePolicy() LateFeePolicy {
	return LateFeePolicy{Multiplier: decimal.NewFromInt(1)}
}

// Reconciliation is the result of applying a set of reports to an order.
type Reconciliation struct {
	Items       []Item
	LateReturn  bool
	LateDays    int
	LateFee     decimal.Decimal
	DamageTotal decimal.Decimal
	Status      OrderStatus
}

// EffectiveReturned is the quantity considered back in stock.
func (i Item) EffectiveReturned() int {
	if i.ReturnStatus == Returned && i.ReturnedQuantity == nil {
		return i.Quantity
	}
	if i.ReturnedQuantity == nil {
		return 0
	}
	return *i.ReturnedQuantity
}

// PendingQuantity is the quantity still out, clamped to [0, Quantity].
func (i Item) PendingQuantity() int {
	pending := i.Quantity - i.EffectiveReturned()
	if pending < 0 {
		return 0
	}
	if pending > i.Quantity {
		return i.Quantity
	}
	return pending
}

// Damaged reports whether a positive damage cost is recorded.
func (i Item) Damaged() bool {
	return i.DamageCost != nil && i.DamageCost.IsPositive()
}

// ApplyReturn validates report against item and returns the updated copy.
// Lateness is measured strictly against dueAt; returning exactly at dueAt is
// on time.
func ApplyReturn(item Item, report ReturnReport, dueAt time.Time) (ReturnOutcome, error) {
	if err := validateReport(item, report); err != nil {
		return ReturnOutcome{}, err
	}

	returned := report.ReturnedQuantity
	item.ReturnedQuantity = &returned

	switch {
	case returned == item.Quantity:
		item.ReturnStatus = Returned
	case returned == 0 && report.hasNote():
		item.ReturnStatus = Missing
	default:
		item.ReturnStatus = NotYetReturned
	}

	if report.DamageCost != nil {
		cost := *report.DamageCost
		item.DamageCost = &cost
	}
	if report.DamageDescription != "" {
		item.DamageDescription = report.DamageDescription
	}
	switch {
	case item.ReturnStatus != Missing:
		item.MissingNote = ""
	case report.MissingNote != "":
		item.MissingNote = report.MissingNote
	}

	return ReturnOutcome{
		Item:       item,
		LateReturn: report.ActualReturnDate.After(dueAt),
	}, nil
}

func validateReport(item Item, report ReturnReport) error {
	if report.ReturnedQuantity < 0 || report.ReturnedQuantity > item.Quantity {
		return newValidationError("returned_quantity",
			"must be between 0 and %d for item %d, got %d", item.Quantity, item.ID, report.ReturnedQuantity)
	}
	if report.DamageCost != nil && report.DamageCost.IsNegative() {
		return newValidationError("damage_cost", "must not be negative for item %d", item.ID)
	}
	if report.ActualReturnDate.IsZero() {
		return newValidationError("actual_return_date", "is required")
	}
	return nil
}

// LateDays counts the started 24 hour periods between dueAt and returnedAt.
func LateDays(dueAt, returnedAt time.Time) int {
	if !returnedAt.After(dueAt) {
		return 0
	}
	over := returnedAt.Sub(dueAt)
	days := int(over / (24 * time.Hour))
	if over%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// ComputeLateFee charges lateDays × the order's daily rate × the multiplier.
func ComputeLateFee(items []Item, lateDays int, policy LateFeePolicy) decimal.Decimal {
	if lateDays <= 0 || !policy.Multiplier.IsPositive() {
		return decimal.Zero
	}
	daily := decimal.Zero
	for _, item := range items {
		daily = daily.Add(item.PricePerDay.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return daily.Mul(decimal.NewFromInt(int64(lateDays))).Mul(policy.Multiplier).Round(MoneyPlaces)
}

// ReconcileOrder applies reports to the order's items. Every report is
// validated before any is applied, so a failure leaves nothing half done.
// Items without a report keep their current state.
func ReconcileOrder(order Order, reports []ReturnReport, policy LateFeePolicy, now time.Time) (Reconciliation, error) {
	if len(reports) == 0 {
		return Reconciliation{}, newValidationError("reports", "at least one item report is required")
	}

	index := make(map[uint]int, len(order.Items))
	for i, item := range order.Items {
		index[item.ID] = i
	}
	seen := make(map[uint]struct{}, len(reports))
	for _, report := range reports {
		pos, ok := index[report.ItemID]
		if !ok {
			return Reconciliation{}, newValidationError("item_id", "item %d does not belong to the order", report.ItemID)
		}
		if _, dup := seen[report.ItemID]; dup {
			return Reconciliation{}, newValidationError("item_id", "item %d reported more than once", report.ItemID)
		}
		seen[report.ItemID] = struct{}{}
		if err := validateReport(order.Items[pos], report); err != nil {
			return Reconciliation{}, err
		}
	}

	items := make([]Item, len(order.Items))
	copy(items, order.Items)

	result := Reconciliation{LateFee: decimal.Zero, DamageTotal: decimal.Zero}
	var latest time.Time
	for _, report := range reports {
		pos := index[report.ItemID]
		outcome, err := ApplyReturn(items[pos], report, order.EndDate)
		if err != nil {
			return Reconciliation{}, err
		}
		items[pos] = outcome.Item
		if outcome.LateReturn {
			result.LateReturn = true
		}
		if report.ActualReturnDate.After(latest) {
			latest = report.ActualReturnDate
		}
	}

	for _, item := range items {
		if item.DamageCost != nil {
			result.DamageTotal = result.DamageTotal.Add(*item.DamageCost)
		}
	}
	if result.LateReturn {
		result.LateDays = LateDays(order.EndDate, latest)
		result.LateFee = ComputeLateFee(items, result.LateDays, policy)
	}

	reconciled := order
	reconciled.Items = items
	result.Items = items
	result.Status = ResolveOrderStatus(reconciled, now)
	return result, nil
}
