// Package store is the normalized entity cache: one map per entity kind,
// keyed by ticker, holding the client's view of the ledger.
//
// Only two writers exist: fetch completions (replace-on-fetch) and order
// reconciliation (replace-on-authoritative-response). Each mutation is
// applied under a single lock, so readers never observe a half-merged record.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// Kind names one entity map of the store.
type Kind string

const (
	KindQuote     Kind = "quote"
	KindHolding   Kind = "holding"
	KindWatchlist Kind = "watchlist"
	KindAccount   Kind = "account"
)

// ParseKind validates a kind name coming from outside the process.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindQuote, KindHolding, KindWatchlist, KindAccount:
		return k, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// ErrRemoveNotAllowed is returned by Remove for kinds the client may never delete.
var ErrRemoveNotAllowed = errors.New("remove not allowed for this kind")

// Change describes one committed mutation.
type Change struct {
	Kind    Kind   `json:"kind"`
	Key     string `json:"key"`
	Removed bool   `json:"removed,omitempty"`
}

// Store holds quotes, holdings, the watchlist and the account.
type Store struct {
	mu        sync.RWMutex
	quotes    map[string]models.Quote
	holdings  map[string]models.Holding
	watchlist map[string]models.WatchlistEntry
	account   *models.UserAccount

	now func() time.Time

	subMu sync.Mutex
	subs  map[chan Change]struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		quotes:    make(map[string]models.Quote),
		holdings:  make(map[string]models.Holding),
		watchlist: make(map[string]models.WatchlistEntry),
		now:       time.Now,
		subs:      make(map[chan Change]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the entity stored under (kind, key). The account ignores key.
func (s *Store) Get(kind Kind, key string) (any, bool) {
	key = models.NormalizeTicker(key)
	switch kind {
	case KindQuote:
		return s.Quote(key)
	case KindHolding:
		return s.Holding(key)
	case KindWatchlist:
		if key == "" {
			return s.Watchlist(), true
		}
		s.mu.RLock()
		e, ok := s.watchlist[key]
		s.mu.RUnlock()
		return e, ok
	case KindAccount:
		return s.Account()
	}
	return nil, false
}

// Upsert writes a fetched entity. Quotes go through the full-record merge;
// use MergeQuotePeriod for period-scoped fetches.
func (s *Store) Upsert(kind Kind, key string, entity any) error {
	switch e := entity.(type) {
	case models.Quote:
		if kind != KindQuote {
			break
		}
		if e.Ticker == "" {
			e.Ticker = key
		}
		s.UpsertQuote(e)
		return nil
	case models.Holding:
		if kind != KindHolding {
			break
		}
		if e.Ticker == "" {
			e.Ticker = key
		}
		s.UpsertHolding(e)
		return nil
	case []models.Holding:
		if kind != KindHolding {
			break
		}
		s.ReplaceHoldings(e)
		return nil
	case []models.WatchlistEntry:
		if kind != KindWatchlist {
			break
		}
		s.ReplaceWatchlist(e)
		return nil
	case models.UserAccount:
		if kind != KindAccount {
			break
		}
		s.SetAccount(e)
		return nil
	}
	return fmt.Errorf("upsert %s: unsupported entity %T", kind, entity)
}

// Remove deletes an entity after the service confirmed the delete. Only
// watchlist entries can be removed; holdings disappear only when a portfolio
// fetch no longer reports them.
func (s *Store) Remove(kind Kind, key string) error {
	if kind != KindWatchlist {
		return fmt.Errorf("remove %s %s: %w", kind, key, ErrRemoveNotAllowed)
	}
	s.RemoveWatch(key)
	return nil
}

// Holding returns the cached holding for ticker.
func (s *Store) Holding(ticker string) (models.Holding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holdings[models.NormalizeTicker(ticker)]
	return h, ok
}

// Holdings returns every cached holding, sorted by ticker.
func (s *Store) Holdings() []models.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedHoldings(s.holdings)
}

// UpsertHolding replaces one holding with the ledger's answer.
func (s *Store) UpsertHolding(h models.Holding) {
	h.Ticker = models.NormalizeTicker(h.Ticker)
	s.mu.Lock()
	s.holdings[h.Ticker] = h
	s.mu.Unlock()
	s.publish(Change{Kind: KindHolding, Key: h.Ticker})
}

// ReplaceHoldings swaps in the full portfolio. Tickers missing from hs are
// dropped because the server no longer reports them.
func (s *Store) ReplaceHoldings(hs []models.Holding) {
	next := make(map[string]models.Holding, len(hs))
	for _, h := range hs {
		h.Ticker = models.NormalizeTicker(h.Ticker)
		next[h.Ticker] = h
	}

	s.mu.Lock()
	prev := s.holdings
	s.holdings = next
	s.mu.Unlock()

	var changes []Change
	for t, h := range next {
		if old, ok := prev[t]; !ok || old.ShareCount != h.ShareCount || !old.Basis.Equal(h.Basis) {
			changes = append(changes, Change{Kind: KindHolding, Key: t})
		}
	}
	for t := range prev {
		if _, ok := next[t]; !ok {
			changes = append(changes, Change{Kind: KindHolding, Key: t, Removed: true})
		}
	}
	s.publish(changes...)
}

// Watchlist returns the watched tickers, sorted.
func (s *Store) Watchlist() []models.WatchlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.WatchlistEntry, 0, len(s.watchlist))
	for _, e := range s.watchlist {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Watching reports whether ticker is on the watchlist.
func (s *Store) Watching(ticker string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.watchlist[models.NormalizeTicker(ticker)]
	return ok
}

// ReplaceWatchlist swaps in the fetched watchlist.
func (s *Store) ReplaceWatchlist(entries []models.WatchlistEntry) {
	next := make(map[string]models.WatchlistEntry, len(entries))
	for _, e := range entries {
		e.Ticker = models.NormalizeTicker(e.Ticker)
		next[e.Ticker] = e
	}

	s.mu.Lock()
	prev := s.watchlist
	s.watchlist = next
	s.mu.Unlock()

	var changes []Change
	for t := range next {
		if _, ok := prev[t]; !ok {
			changes = append(changes, Change{Kind: KindWatchlist, Key: t})
		}
	}
	for t := range prev {
		if _, ok := next[t]; !ok {
			changes = append(changes, Change{Kind: KindWatchlist, Key: t, Removed: true})
		}
	}
	s.publish(changes...)
}

// RemoveWatch drops ticker from the watchlist.
func (s *Store) RemoveWatch(ticker string) {
	ticker = models.NormalizeTicker(ticker)
	s.mu.Lock()
	_, existed := s.watchlist[ticker]
	delete(s.watchlist, ticker)
	s.mu.Unlock()
	if existed {
		s.publish(Change{Kind: KindWatchlist, Key: ticker, Removed: true})
	}
}

// Account returns the cached user account.
func (s *Store) Account() (models.UserAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return models.UserAccount{}, false
	}
	return *s.account, true
}

// SetAccount replaces the account with the ledger's answer.
func (s *Store) SetAccount(acct models.UserAccount) {
	s.mu.Lock()
	s.account = &acct
	s.mu.Unlock()
	s.publish(Change{Kind: KindAccount})
}

func sortedHoldings(m map[string]models.Holding) []models.Holding {
	out := make([]models.Holding, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
