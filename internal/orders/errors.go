package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Failure kinds surfaced by the repo. Every one of them means the whole
// transaction was rolled back; there is no partial-success mode.

type NotFoundError struct {
	Entity string // "order" | "product" | "variation"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

type InsufficientStockError struct {
	Entity    string // "product" | "variation"
	ID        string
	Requested int
	Available int // best effort, for messaging only
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s %s: requested %d, available %d",
		e.Entity, e.ID, e.Requested, e.Available)
}

type DuplicateCodeError struct {
	Code string
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("order code already used: %s", e.Code)
}

type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

const pgUniqueViolation = "23505"

// classifyInsertErr maps a unique violation on the order code index to
// DuplicateCodeError; anything else passes through unchanged.
func classifyInsertErr(err error, code string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation &&
		strings.Contains(pgErr.ConstraintName, "orders_code") {
		return &DuplicateCodeError{Code: code}
	}
	return err
}
