package mockup

import (
	"fmt"
	"sync"
	"time"
)

// IDGenerator issues time-derived mockup ids with microsecond precision.
// Ids are strictly increasing within a process even when the clock does
// not advance between calls.
type IDGenerator struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewIDGenerator returns a generator backed by the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns an id like 20250102_150405_123456.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.now().UTC().Truncate(time.Microsecond)
	if !t.After(g.last) {
		t = g.last.Add(time.Microsecond)
	}
	g.last = t
	return fmt.Sprintf("%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/1000)
}
