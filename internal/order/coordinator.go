package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/db"
	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/store"
)

const (
	DefaultWorkers     = 5
	DefaultQueueSize   = 100
	DefaultQuoteTTL    = time.Minute
	DefaultCallTimeout = 10 * time.Second
	DefaultHistorySize = 100
)

// ErrInvalidSide rejects an order that is neither a buy nor a sell.
var ErrInvalidSide = errors.New("order side must be buy or sell")

// Ledger is the write side of the price service.
type Ledger interface {
	AdjustHolding(ctx context.Context, ticker string, side models.Side, price decimal.Decimal) (models.Holding, error)
	AdjustBalance(ctx context.Context, amount decimal.Decimal, operator string) (models.UserAccount, error)
}

// Refresher re-fetches entities from the price service into the store.
// Reload must issue a new request rather than join one already running,
// since that one may have been sent before the order changed the ledger.
type Refresher interface {
	Reload(ctx context.Context, kind store.Kind, key string) error
}

// TransitionHook observes every state change. It runs on the goroutine
// that made the change and must not block.
type TransitionHook func(o Order, t Transition)

type job struct {
	order    *Order
	resultCh chan Result
}

// Coordinator runs order sagas on a pool of workers.
type Coordinator struct {
	ledger    Ledger
	refresher Refresher
	store     *store.Store
	journal   db.Journal
	logger    zerolog.Logger
	hook      TransitionHook
	guard     *models.TickerGuard
	now       func() time.Time

	workers     int
	quoteTTL    time.Duration
	callTimeout time.Duration
	historySize int

	queue     chan job
	stopCh    chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopMu    sync.RWMutex
	stopped   bool

	mu      sync.Mutex
	active  map[string]*Order
	history []Order
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkers sets the number of sagas that may run at once.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQuoteTTL sets how old a cached quote may be and still price an order.
func WithQuoteTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.quoteTTL = ttl
		}
	}
}

// WithCallTimeout bounds each ledger and reconcile call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithJournal records every transition in j.
func WithJournal(j db.Journal) Option {
	return func(c *Coordinator) {
		if j != nil {
			c.journal = j
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithTransitionHook registers fn to observe state changes.
func WithTransitionHook(fn TransitionHook) Option {
	return func(c *Coordinator) {
		c.hook = fn
	}
}

// WithHistorySize sets how many finished orders History keeps.
func WithHistorySize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.historySize = n
		}
	}
}

// WithClock overrides time.Now for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates a Coordinator. Call Start before submitting orders.
func New(ledger Ledger, refresher Refresher, st *store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		ledger:      ledger,
		refresher:   refresher,
		store:       st,
		journal:     db.NewNoopJournal(),
		logger:      zerolog.Nop(),
		guard:       models.NewTickerGuard(),
		now:         time.Now,
		workers:     DefaultWorkers,
		quoteTTL:    DefaultQuoteTTL,
		callTimeout: DefaultCallTimeout,
		historySize: DefaultHistorySize,
		queue:       make(chan job, DefaultQueueSize),
		stopCh:      make(chan struct{}),
		active:      make(map[string]*Order),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the worker pool.
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		for i := 0; i < c.workers; i++ {
			c.wg.Add(1)
			go c.worker(i)
		}
		c.logger.Info().Int("workers", c.workers).Msg("order workers started")
	})
}

// Stop waits for running sagas to finish. Queued orders that never started
// are rejected with ErrStopped.
func (c *Coordinator) Stop() {
	c.stopMu.Lock()
	if c.stopped {
		c.stopMu.Unlock()
		return
	}
	c.stopped = true
	c.stopMu.Unlock()

	close(c.stopCh)
	c.wg.Wait()

	for {
		select {
		case j := <-c.queue:
			c.release(j.order.Ticker)
			j.resultCh <- c.complete(j.order, StateRejected, ErrStopped)
		default:
			c.logger.Info().Msg("order coordinator stopped")
			return
		}
	}
}

func (c *Coordinator) worker(id int) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			c.logger.Debug().Int("worker", id).Msg("order worker stopping")
			return

		case j := <-c.queue:
			c.logger.Debug().Int("worker", id).
				Str("order_id", j.order.ID.String()).
				Str("ticker", j.order.Ticker).
				Str("side", string(j.order.Side)).
				Msg("processing order")
			j.resultCh <- c.execute(j.order)
		}
	}
}

// Submit validates an order for one share of ticker and, if it passes,
// runs the saga and waits for its result. Validation failures, including
// OrderInFlight, return immediately without any network call.
//
// Cancelling ctx stops the wait; the saga itself always runs to the end.
func (c *Coordinator) Submit(ctx context.Context, ticker string, side models.Side) Result {
	o := &Order{
		ID:          uuid.New(),
		Ticker:      models.NormalizeTicker(ticker),
		Side:        side,
		State:       StateIdle,
		SubmittedAt: c.now(),
	}
	c.transition(o, StateValidating, ReasonNone)

	if side != models.SideBuy && side != models.SideSell {
		return c.complete(o, StateRejected, ErrInvalidSide)
	}
	if !c.guard.TryAcquire(o.Ticker) {
		return c.complete(o, StateRejected, reject(ReasonOrderInFlight, nil))
	}
	c.track(o)

	price, source, err := c.validate(o.Ticker, side)
	if err != nil {
		c.release(o.Ticker)
		return c.complete(o, StateRejected, err)
	}
	c.mu.Lock()
	o.Price = price
	o.PriceSource = source
	c.mu.Unlock()

	j := job{order: o, resultCh: make(chan Result, 1)}
	if err := c.enqueue(ctx, j); err != nil {
		c.release(o.Ticker)
		return c.complete(o, StateRejected, err)
	}

	select {
	case res := <-j.resultCh:
		return res
	case <-ctx.Done():
		return Result{Order: c.snapshot(o), Err: ctx.Err()}
	}
}

func (c *Coordinator) enqueue(ctx context.Context, j job) error {
	c.stopMu.RLock()
	defer c.stopMu.RUnlock()
	if c.stopped {
		return ErrStopped
	}
	select {
	case c.queue <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight reports whether ticker has an order being validated or executed.
func (c *Coordinator) InFlight(ticker string) bool {
	return c.guard.Busy(models.NormalizeTicker(ticker))
}

// Active returns the in-flight order for ticker.
func (c *Coordinator) Active(ticker string) (Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.active[models.NormalizeTicker(ticker)]
	if !ok {
		return Order{}, false
	}
	return o.clone(), true
}

// History returns up to limit finished orders, newest first.
// A limit of zero or less returns everything kept.
func (c *Coordinator) History(limit int) []Order {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Order, 0, n)
	for i := len(c.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, c.history[i].clone())
	}
	return out
}

func (c *Coordinator) track(o *Order) {
	c.mu.Lock()
	c.active[o.Ticker] = o
	c.mu.Unlock()
}

func (c *Coordinator) release(ticker string) {
	c.mu.Lock()
	delete(c.active, ticker)
	c.mu.Unlock()
	c.guard.Release(ticker)
}

func (c *Coordinator) snapshot(o *Order) Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return o.clone()
}

// transition moves o to state and reports the change to the journal,
// the log and the hook.
func (c *Coordinator) transition(o *Order, to State, reason Reason) {
	c.mu.Lock()
	t := Transition{From: o.State, To: to, Reason: reason, At: c.now()}
	o.State = to
	if reason != ReasonNone {
		o.Reason = reason
	}
	o.Transitions = append(o.Transitions, t)
	snap := o.clone()
	c.mu.Unlock()

	c.logger.Info().
		Str("order_id", snap.ID.String()).
		Str("ticker", snap.Ticker).
		Str("side", string(snap.Side)).
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Str("reason", string(t.Reason)).
		Msg("order transition")

	c.record(snap, t)

	if c.hook != nil {
		c.hook(snap, t)
	}
}

func (c *Coordinator) record(o Order, t Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), c.callTimeout)
	defer cancel()

	err := c.journal.RecordTransition(ctx, db.Transition{
		OrderID: o.ID,
		Ticker:  o.Ticker,
		Side:    string(o.Side),
		From:    string(t.From),
		To:      string(t.To),
		Reason:  string(t.Reason),
		Price:   o.Price,
		Error:   o.Error,
		At:      t.At,
	})
	if err != nil {
		c.logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("failed to journal order transition")
	}
}

// complete makes the final transition and files the order in history.
func (c *Coordinator) complete(o *Order, to State, err error) Result {
	reason := ReasonNone
	var rerr *RejectionError
	if errors.As(err, &rerr) {
		reason = rerr.Reason
	}

	c.mu.Lock()
	if err != nil {
		o.Error = err.Error()
	}
	o.CompletedAt = c.now()
	c.mu.Unlock()

	c.transition(o, to, reason)

	c.mu.Lock()
	snap := o.clone()
	c.history = append(c.history, snap)
	if len(c.history) > c.historySize {
		c.history = c.history[len(c.history)-c.historySize:]
	}
	c.mu.Unlock()

	return Result{Order: snap, Success: err == nil, Err: err}
}
