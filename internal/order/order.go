// Package order executes buy and sell orders against the price service.
//
// An order trades exactly one share. It moves through
//
//	Idle -> Validating -> Submitting -> Reconciling -> Idle
//	Idle -> Validating -> Rejected
//
// Validation happens synchronously in Submit and never touches the network.
// Submitting adjusts the holding and then the cash balance. If the balance
// call fails after the holding call succeeded the holding is not rolled
// back: Reconciling re-fetches both so the store matches the server.
package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// State is a step of the order state machine.
type State string

const (
	StateIdle        State = "Idle"
	StateValidating  State = "Validating"
	StateSubmitting  State = "Submitting"
	StateReconciling State = "Reconciling"
	StateRejected    State = "Rejected"
)

// PriceSource tells where the transaction price came from.
type PriceSource string

const (
	PriceFromQuote PriceSource = "quote"
	PriceFromBasis PriceSource = "basis"
)

// Transition records one state change of an order.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Reason Reason    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Order is the inspectable record of one saga.
type Order struct {
	ID          uuid.UUID           `json:"id"`
	Ticker      string              `json:"ticker"`
	Side        models.Side         `json:"side"`
	Price       decimal.Decimal     `json:"price"`
	PriceSource PriceSource         `json:"price_source,omitempty"`
	State       State               `json:"state"`
	Reason      Reason              `json:"reason,omitempty"`
	Error       string              `json:"error,omitempty"`
	Holding     *models.Holding     `json:"holding,omitempty"`
	Account     *models.UserAccount `json:"account,omitempty"`
	Transitions []Transition        `json:"transitions"`
	SubmittedAt time.Time           `json:"submitted_at"`
	CompletedAt time.Time           `json:"completed_at,omitempty"`
}

// Done reports whether the order reached a terminal state.
func (o Order) Done() bool {
	return o.State == StateRejected || (o.State == StateIdle && len(o.Transitions) > 0)
}

func (o Order) clone() Order {
	c := o
	c.Transitions = append([]Transition(nil), o.Transitions...)
	if o.Holding != nil {
		h := *o.Holding
		c.Holding = &h
	}
	if o.Account != nil {
		a := *o.Account
		c.Account = &a
	}
	return c
}

// Result is what Submit hands back to the caller.
type Result struct {
	Order   Order `json:"order"`
	Success bool  `json:"success"`
	Err     error `json:"-"`
}

// Reason is the rejection or partial-failure reason, if any.
func (r Result) Reason() Reason {
	return r.Order.Reason
}
