// Package window implements the fixed-capacity state owned by one
// NodePushState: the ring buffer, its Lag specialisation, and the
// exponential accumulator. Windows are never shared between nodes.
package window

import (
	"fmt"

	"github.com/tm1ddleton/analytics/internal/analytics/calc"
)

// FixedRing is a fixed-capacity ring buffer supporting O(1) append with
// wrap-around and "latest k elements in insertion order" queries.
// Partial fill (len < capacity) is valid.
type FixedRing struct {
	buf      []float64
	capacity int
	size     int
	head     int // index of the oldest element
}

// NewFixedRing creates a ring buffer of the given capacity, which must be > 0.
func NewFixedRing(capacity int) (*FixedRing, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("window: capacity must be > 0, got %d", capacity)
	}
	return &FixedRing{buf: make([]float64, capacity), capacity: capacity}, nil
}

// Push appends a value, overwriting the oldest element once full.
func (r *FixedRing) Push(v float64) {
	writeAt := (r.head + r.size) % r.capacity
	if r.size < r.capacity {
		r.buf[writeAt] = v
		r.size++
	} else {
		r.buf[r.head] = v
		r.head = (r.head + 1) % r.capacity
	}
}

// Len returns the number of elements currently held.
func (r *FixedRing) Len() int { return r.size }

// IsFull reports whether the buffer has reached its capacity.
func (r *FixedRing) IsFull() bool { return r.size == r.capacity }

// Capacity returns the buffer's fixed capacity.
func (r *FixedRing) Capacity() int { return r.capacity }

// Clear empties the buffer without changing its capacity.
func (r *FixedRing) Clear() {
	r.size = 0
	r.head = 0
}

// SliceLatest returns the most recent k elements in insertion (oldest-first)
// order. If k exceeds Len(), the full buffer is returned. k <= 0 returns nil.
func (r *FixedRing) SliceLatest(k int) []float64 {
	if k <= 0 || r.size == 0 {
		return nil
	}
	if k > r.size {
		k = r.size
	}

	out := make([]float64, k)
	start := (r.head + r.size - k + r.capacity) % r.capacity
	for i := 0; i < k; i++ {
		out[i] = r.buf[(start+i)%r.capacity]
	}
	return out
}

// Lag is a FixedRing specialised to capacity k+1, used to recover the value
// exactly k steps behind the most recently pushed one.
type Lag struct {
	ring *FixedRing
}

// NewLag creates a Lag window for offset k (k >= 0).
func NewLag(k uint32) (*Lag, error) {
	ring, err := NewFixedRing(int(k) + 1)
	if err != nil {
		return nil, err
	}
	return &Lag{ring: ring}, nil
}

// Push records a new value.
func (l *Lag) Push(v float64) { l.ring.Push(v) }

// CurrentLagged returns the oldest retained value and true once the buffer
// is full; otherwise (value, false).
func (l *Lag) CurrentLagged() (float64, bool) {
	if !l.ring.IsFull() {
		return 0, false
	}
	oldest := l.ring.SliceLatest(l.ring.Len())
	return oldest[0], true
}

// Len reports how many values have been pushed so far (capped at capacity).
func (l *Lag) Len() int { return l.ring.Len() }

// ExpoState holds the running state for an exponential moving average:
// the previous value (if any) and the smoothing factor lambda.
type ExpoState struct {
	prev    float64
	hasPrev bool
	Lambda  float64
}

// NewExpoState creates an ExpoState for the given lambda, which must satisfy
// 0 < lambda <= 1.
func NewExpoState(lambda float64) (*ExpoState, error) {
	if lambda <= 0 || lambda > 1 {
		return nil, fmt.Errorf("window: lambda must be in (0, 1], got %v", lambda)
	}
	return &ExpoState{Lambda: lambda}, nil
}

// Update applies one EMA step and returns the new current value.
func (e *ExpoState) Update(x float64) float64 {
	next := calc.EmaStep(e.prev, e.hasPrev, x, e.Lambda)
	e.prev = next
	e.hasPrev = true
	return next
}

// Current returns the last computed value and whether one exists yet.
func (e *ExpoState) Current() (float64, bool) {
	return e.prev, e.hasPrev
}
