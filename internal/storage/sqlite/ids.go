// ABOUTME: Bead id generation - capture timestamp plus a per-second counter
// ABOUTME: Monotonic even under clock regression; collisions with other writers are reseeded
package sqlite

import (
	"fmt"
	"sync"
	"time"
)

// idGenerator hands out bead ids of the form bd-20260830T101502-0007.
// Ids sort by capture time; the counter disambiguates within one second.
// The counter is process-local, so another writer on the same database can
// persist an id this generator would hand out next; Create resolves that by
// reseeding past the stored maximum and retrying.
type idGenerator struct {
	mu      sync.Mutex
	second  string
	counter int
	now     func() time.Time
}

func newIDGenerator() *idGenerator {
	return &idGenerator{now: time.Now}
}

// Next returns a fresh bead id, unique within this process. The second
// component never moves backwards: if the wall clock regresses, ids keep
// counting under the latest second already handed out.
func (g *idGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	sec := g.now().UTC().Format("20060102T150405")
	if sec > g.second {
		g.second = sec
		g.counter = 0
	}
	g.counter++
	return fmt.Sprintf("bd-%s-%04d", g.second, g.counter)
}

// advancePast moves the generator at least beyond counter for the given
// second, so the next id lands past everything another writer persisted.
func (g *idGenerator) advancePast(second string, counter int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if second > g.second {
		g.second = second
		g.counter = 0
	}
	if second == g.second && counter > g.counter {
		g.counter = counter
	}
}
