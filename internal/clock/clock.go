package clock

import (
	"sync"
	"time"
)

// Clock supplies timestamps for message creation, watermarks and reads.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// Monotonic hands out strictly increasing UTC timestamps at microsecond
// precision, which is what TIMESTAMPTZ stores. When the source stalls or
// steps backwards the previous reading is advanced by one microsecond.
type Monotonic struct {
	mu     sync.Mutex
	source Clock
	last   time.Time
}

// NewMonotonic wraps source; a nil source uses time.Now.
func NewMonotonic(source Clock) *Monotonic {
	if source == nil {
		source = Func(time.Now)
	}
	return &Monotonic{source: source}
}

func (m *Monotonic) Now() time.Time {
	now := m.source.Now().UTC().Truncate(time.Microsecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !now.After(m.last) {
		now = m.last.Add(time.Microsecond)
	}
	m.last = now
	return now
}
