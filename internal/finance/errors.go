package finance

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when a projection has no history to
// work with.
var ErrInsufficientData = errors.New("not enough expense history")

// DuplicatePaymentError reports an attempt to pay a bill twice for the
// same period.
type DuplicatePaymentError struct {
	Bill  string
	Month int
	Year  int
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("bill %q already paid for %02d/%d", e.Bill, e.Month, e.Year)
}

// BillNotFoundError reports a bill reference that matched nothing.
type BillNotFoundError struct {
	Ref string
}

func (e *BillNotFoundError) Error() string {
	return fmt.Sprintf("no bill matches %q", e.Ref)
}

// PaymentNotFoundError reports an unmark attempt for a period with no
// recorded payment.
type PaymentNotFoundError struct {
	Bill  string
	Month int
	Year  int
}

func (e *PaymentNotFoundError) Error() string {
	return fmt.Sprintf("no payment recorded for %q in %02d/%d", e.Bill, e.Month, e.Year)
}

// GoalNotFoundError reports a goal reference that matched nothing.
type GoalNotFoundError struct {
	Ref string
}

func (e *GoalNotFoundError) Error() string {
	return fmt.Sprintf("no savings goal matches %q", e.Ref)
}

// GoalInactiveError reports a contribution to a deactivated goal.
type GoalInactiveError struct {
	Name string
}

func (e *GoalInactiveError) Error() string {
	return fmt.Sprintf("savings goal %q is not active", e.Name)
}

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
