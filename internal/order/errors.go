package order

import (
	"errors"
	"fmt"
)

// Reason explains why an order was rejected or only partly applied.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonInsufficientFunds   Reason = "InsufficientFunds"
	ReasonNoShares            Reason = "NoShares"
	ReasonPriceUnavailable    Reason = "PriceUnavailable"
	ReasonOrderInFlight       Reason = "OrderInFlight"
	ReasonHoldingUpdateFailed Reason = "HoldingUpdateFailed"
	ReasonBalanceUpdateFailed Reason = "BalanceUpdateFailed"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNoShares            = errors.New("no shares to sell")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrOrderInFlight       = errors.New("order already in flight for ticker")
	ErrHoldingUpdateFailed = errors.New("holding update failed")
	ErrBalanceUpdateFailed = errors.New("balance update failed")

	// ErrStopped is returned for orders submitted after Stop.
	ErrStopped = errors.New("order coordinator stopped")
)

var reasonErrors = map[Reason]error{
	ReasonInsufficientFunds:   ErrInsufficientFunds,
	ReasonNoShares:            ErrNoShares,
	ReasonPriceUnavailable:    ErrPriceUnavailable,
	ReasonOrderInFlight:       ErrOrderInFlight,
	ReasonHoldingUpdateFailed: ErrHoldingUpdateFailed,
	ReasonBalanceUpdateFailed: ErrBalanceUpdateFailed,
}

// Err returns the sentinel error for r, or nil for ReasonNone.
func (r Reason) Err() error {
	return reasonErrors[r]
}

// IsValidation reports whether r was decided before any network call.
func (r Reason) IsValidation() bool {
	switch r {
	case ReasonInsufficientFunds, ReasonNoShares, ReasonPriceUnavailable, ReasonOrderInFlight:
		return true
	}
	return false
}

// RejectionError carries the reason an order did not fully apply and,
// for network failures, the underlying error.
type RejectionError struct {
	Reason Reason
	Err    error
}

func (e *RejectionError) Error() string {
	msg := e.Reason.Err().Error()
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the reason sentinel and the cause to errors.Is/As.
func (e *RejectionError) Unwrap() []error {
	errs := []error{e.Reason.Err()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func reject(reason Reason, err error) *RejectionError {
	return &RejectionError{Reason: reason, Err: err}
}
