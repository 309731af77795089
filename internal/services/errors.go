package services

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"rental_manager/internal/repository"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrItemNotFound     = errors.New("order item not found")
	ErrBranchNotFound   = errors.New("branch not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrStaffNotFound    = errors.New("staff member not found")
	ErrReturnNotFound   = errors.New("return event not found")
	ErrOrderCancelled   = errors.New("order is cancelled")
	ErrOrderLocked      = errors.New("order items cannot change after returns were recorded")
	ErrEmptyOrder       = errors.New("order must contain at least one item")
	ErrInsufficientRole = errors.New("insufficient permissions")
	ErrInactiveStaff    = errors.New("staff member is inactive")
	ErrDuplicate        = errors.New("record already exists")
)

// notFound swaps the repository's generic not-found error for a specific one.
func notFound(err error, specific error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return specific
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrDuplicate
	}
	return err
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	return ulid.Make().String(), nil
}
