package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

// Quote returns a copy of the cached quote for ticker.
func (s *Store) Quote(ticker string) (models.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[models.NormalizeTicker(ticker)]
	if !ok {
		return models.Quote{}, false
	}
	return q.Clone(), true
}

// FreshQuote returns the cached quote only if a full fetch completed within ttl.
func (s *Store) FreshQuote(ticker string, ttl time.Duration) (models.Quote, bool) {
	q, ok := s.Quote(ticker)
	if !ok || q.FetchedAt.IsZero() {
		return models.Quote{}, false
	}
	if s.now().Sub(q.FetchedAt) > ttl {
		return models.Quote{}, false
	}
	return q, true
}

// UpsertQuote writes a full quote fetch. Top-level fields are replaced;
// series are merged per period so periods missing from q survive.
func (s *Store) UpsertQuote(q models.Quote) {
	q = q.Clone()
	q.Ticker = models.NormalizeTicker(q.Ticker)
	q.FetchedAt = s.now()

	s.mu.Lock()
	if old, ok := s.quotes[q.Ticker]; ok {
		merged := make(map[models.Period][]decimal.Decimal, len(old.Series)+len(q.Series))
		for p, series := range old.Series {
			merged[p] = series
		}
		for p, series := range q.Series {
			merged[p] = series
		}
		q.Series = merged
	}
	if q.Series == nil {
		q.Series = make(map[models.Period][]decimal.Decimal)
	}
	s.quotes[q.Ticker] = q
	s.mu.Unlock()

	s.publish(Change{Kind: KindQuote, Key: q.Ticker})
}

// MergeQuotePeriod writes a period-scoped fetch: only partial's series for
// period is taken, every other field of the cached record is kept. The
// record's fetch time is not advanced since its price was not refreshed.
func (s *Store) MergeQuotePeriod(partial models.Quote, period models.Period) {
	ticker := models.NormalizeTicker(partial.Ticker)
	series, ok := partial.Series[period]
	if !ok {
		return
	}
	series = append([]decimal.Decimal(nil), series...)

	s.mu.Lock()
	q, exists := s.quotes[ticker]
	if !exists {
		q = models.Quote{Ticker: ticker}
	}
	next := make(map[models.Period][]decimal.Decimal, len(q.Series)+1)
	for p, existing := range q.Series {
		next[p] = existing
	}
	next[period] = series
	q.Series = next
	s.quotes[ticker] = q
	s.mu.Unlock()

	s.publish(Change{Kind: KindQuote, Key: ticker})
}
