package fetch

import (
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/store"
)

// InFlightEventually waits briefly for a fetch to be running.
func (o *Orchestrator) InFlightEventually(kind store.Kind, key string) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if o.InFlight(kind, key) {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
