package fetch

import (
	"fmt"

	"github.com/atharvakonge/paper-brokerage/internal/models"
	"github.com/atharvakonge/paper-brokerage/internal/store"
)

// target is one coalescing unit.
type target struct {
	kind   store.Kind
	key    string
	period models.Period
}

func newTarget(kind store.Kind, key string, period models.Period) target {
	switch kind {
	case store.KindHolding, store.KindAccount, store.KindWatchlist:
		// One request serves every key of these kinds.
		key = ""
	default:
		key = models.NormalizeTicker(key)
	}
	return target{kind: kind, key: key, period: period}
}

func (t target) id() string {
	if t.period != "" {
		return fmt.Sprintf("%s:%s:%s", t.kind, t.key, t.period)
	}
	return fmt.Sprintf("%s:%s", t.kind, t.key)
}

// UnknownKindError is returned for kinds the orchestrator cannot fetch.
type UnknownKindError struct {
	Kind store.Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("cannot fetch entity kind %q", e.Kind)
}
