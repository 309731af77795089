package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"rental_manager/internal/rental"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Postgres SQLSTATE codes the repositories translate.
const (
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgInvalidTextEncoding = "22P02"
	pgUniqueViolation     = "23505"
)

// translateError maps driver errors onto the errors services understand.
// Constraint refusals become *rental.PersistenceRejected so callers can take
// the degraded path instead of losing the update.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCheckViolation, pgNotNullViolation, pgInvalidTextEncoding:
			return &rental.PersistenceRejected{Constraint: pgErr.ConstraintName, Err: err}
		case pgUniqueViolation:
			return ErrDuplicate
		}
	}
	return err
}
