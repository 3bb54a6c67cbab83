package store

import (
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// Snapshot is a consistent copy of the whole store taken under one lock.
type Snapshot struct {
	Quotes    map[string]models.Quote
	Holdings  []models.Holding
	Watchlist []models.WatchlistEntry
	Account   *models.UserAccount
	TakenAt   time.Time
}

// Snapshot copies every entity. Mutating the result does not affect the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Quotes:    make(map[string]models.Quote, len(s.quotes)),
		Holdings:  sortedHoldings(s.holdings),
		Watchlist: make([]models.WatchlistEntry, 0, len(s.watchlist)),
		TakenAt:   s.now(),
	}
	for t, q := range s.quotes {
		snap.Quotes[t] = q.Clone()
	}
	for _, e := range s.watchlist {
		snap.Watchlist = append(snap.Watchlist, e)
	}
	if s.account != nil {
		acct := *s.account
		snap.Account = &acct
	}
	return snap
}

// Holding looks up a holding in the snapshot.
func (s Snapshot) Holding(ticker string) (models.Holding, bool) {
	ticker = models.NormalizeTicker(ticker)
	for _, h := range s.Holdings {
		if h.Ticker == ticker {
			return h, true
		}
	}
	return models.Holding{}, false
}
