package order

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/atharvakonge/paper-brokerage/internal/store"
)

// execute runs the network half of the saga for a validated order.
func (c *Coordinator) execute(o *Order) Result {
	defer c.release(o.Ticker)

	c.transition(o, StateSubmitting, ReasonNone)

	ctx, cancel := context.WithTimeout(context.Background(), c.callTimeout)
	h, err := c.ledger.AdjustHolding(ctx, o.Ticker, o.Side, o.Price)
	cancel()
	if err != nil {
		return c.complete(o, StateRejected, reject(ReasonHoldingUpdateFailed, err))
	}
	c.store.UpsertHolding(h)

	// The holding already changed on the server. From here on the order is
	// never rolled back, only reconciled.
	var partial error
	ctx, cancel = context.WithTimeout(context.Background(), c.callTimeout)
	acct, err := c.ledger.AdjustBalance(ctx, o.Price, o.Side.BalanceOperator())
	cancel()
	reason := ReasonNone
	if err != nil {
		partial = reject(ReasonBalanceUpdateFailed, err)
		reason = ReasonBalanceUpdateFailed
		c.logger.Warn().Err(err).
			Str("order_id", o.ID.String()).
			Str("ticker", o.Ticker).
			Msg("balance update failed after holding update, reconciling")
	} else {
		c.store.SetAccount(acct)
	}

	c.transition(o, StateReconciling, reason)
	c.reconcile(o)

	return c.complete(o, StateIdle, partial)
}

// reconcile re-fetches the holding, the account and the quote, then copies
// whatever the store now holds onto the order.
func (c *Coordinator) reconcile(o *Order) {
	ctx, cancel := context.WithTimeout(context.Background(), c.callTimeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error { return c.refresher.Reload(ctx, store.KindHolding, o.Ticker) })
	g.Go(func() error { return c.refresher.Reload(ctx, store.KindAccount, "") })
	if err := g.Wait(); err != nil {
		c.logger.Warn().Err(err).Str("order_id", o.ID.String()).Msg("reconcile fetch failed")
	}
	if err := c.refresher.Reload(ctx, store.KindQuote, o.Ticker); err != nil {
		c.logger.Debug().Err(err).Str("ticker", o.Ticker).Msg("quote refresh after order failed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.store.Holding(o.Ticker); ok {
		o.Holding = &h
	} else {
		o.Holding = nil
	}
	if a, ok := c.store.Account(); ok {
		o.Account = &a
	}
}
