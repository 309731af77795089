package rental

import (
	"fmt"
	"strings"
	"time"
)

// ReturnStatus is the return state of a single item. The zero value is
// NotYetReturned so that absent stored values need no special casing.
type ReturnStatus uint8

const (
	NotYetReturned ReturnStatus = iota
	Returned
	Missing
)

func (s ReturnStatus) String() string {
	switch s {
	case NotYetReturned:
		return "not_yet_returned"
	case Returned:
		return "returned"
	case Missing:
		return "missing"
	}
	return fmt.Sprintf("return_status(%d)", uint8(s))
}

// Valid reports whether s is one of the declared statuses.
func (s ReturnStatus) Valid() bool {
	switch s {
	case NotYetReturned, Returned, Missing:
		return true
	}
	return false
}

// ParseReturnStatus maps a stored value to a ReturnStatus. Empty input is
// NotYetReturned.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "not_yet_returned", "pending":
		return NotYetReturned, nil
	case "returned":
		return Returned, nil
	case "missing":
		return Missing, nil
	}
	return NotYetReturned, newValidationError("return_status", "unknown value %q", value)
}

// OrderStatus is the order-level lifecycle value persisted with each order.
type OrderStatus string

const (
	StatusScheduled           OrderStatus = "scheduled"
	StatusActive              OrderStatus = "active"
	StatusPendingReturn       OrderStatus = "pending_return"
	StatusCompleted           OrderStatus = "completed"
	StatusCompletedWithIssues OrderStatus = "completed_with_issues"
	StatusCancelled           OrderStatus = "cancelled"
	StatusPartiallyReturned   OrderStatus = "partially_returned"
	StatusFlagged             OrderStatus = "flagged"
)

// OrderStatuses lists every status the storage layer must accept.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		StatusScheduled,
		StatusActive,
		StatusPendingReturn,
		StatusCompleted,
		StatusCompletedWithIssues,
		StatusCancelled,
		StatusPartiallyReturned,
		StatusFlagged,
	}
}

// ParseOrderStatus validates a stored or requested status value.
func ParseOrderStatus(value string) (OrderStatus, error) {
	v := OrderStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range OrderStatuses() {
		if s == v {
			return s, nil
		}
	}
	return "", newValidationError("status", "unknown order status %q", value)
}

// Terminal reports whether no further time-based transition applies.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithIssues, StatusCancelled:
		return true
	}
	return false
}

// ResolveOrderStatus derives the order status from item return states and the
// rental window. Rules are evaluated in precedence order and the first match
// wins. StatusFlagged is never produced here.
func ResolveOrderStatus(order Order, now time.Time) OrderStatus {
	if order.Cancelled {
		return StatusCancelled
	}

	var (
		allReturned  = true
		allAccounted = true
		hasIssue     = false
		hasProgress  = false
	)
	for _, item := range order.Items {
		damaged := item.Damaged()
		switch item.ReturnStatus {
		case Returned:
			hasProgress = true
		case Missing:
			hasProgress = true
			hasIssue = true
			allReturned = false
		case NotYetReturned:
			allReturned = false
			allAccounted = false
			if item.EffectiveReturned() > 0 {
				hasProgress = true
			}
		}
		if damaged {
			hasIssue = true
		}
	}

	switch {
	case hasIssue && allAccounted:
		return StatusCompletedWithIssues
	case allReturned:
		return StatusCompleted
	case hasProgress:
		return StatusPartiallyReturned
	case now.Before(order.StartDate):
		return StatusScheduled
	case !now.After(order.EndDate):
		return StatusActive
	default:
		return StatusPendingReturn
	}
}
