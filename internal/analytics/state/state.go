// Package state implements NodePushState: the per-node bookkeeping a push
// engine owns for the lifetime of its DAG — last emitted timestamp, bounded
// output history, and lifecycle.
package state

import (
	"fmt"
	"time"

	"github.com/tm1ddleton/analytics/internal/analytics/types"
)

// Lifecycle is the phase of one node within a push engine.
type Lifecycle int

const (
	Uninitialized Lifecycle = iota
	Ready
	Computing
	Failed
)

func (l Lifecycle) String() string {
	switch l {
	case Uninitialized:
		return "Uninitialized"
	case Ready:
		return "Ready"
	case Computing:
		return "Computing"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// NodePushState is the mutable state a push engine holds per node. It is
// never shared across engines and must only be touched under the engine's
// single-writer discipline.
type NodePushState struct {
	LastTimestamp  time.Time
	HasLastTS      bool
	OutputHistory  []types.Point
	HistoryBound   int // 0 means unbounded
	Lifecycle      Lifecycle
	FailureReason  string
}

// NewNodePushState returns a fresh, Uninitialized state. historyBound caps
// OutputHistory length (0 = unbounded, used by pull-from-push simulation
// that wants the full expected length retained).
func NewNodePushState(historyBound int) *NodePushState {
	return &NodePushState{Lifecycle: Uninitialized, HistoryBound: historyBound}
}

// BeginStep transitions the node to Computing for one propagation step.
func (s *NodePushState) BeginStep() {
	s.Lifecycle = Computing
	s.FailureReason = ""
}

// Emit records a successful output: appends to history, advances
// last_timestamp, and transitions to Ready.
func (s *NodePushState) Emit(p types.Point) {
	s.OutputHistory = append(s.OutputHistory, p)
	if s.HistoryBound > 0 && len(s.OutputHistory) > s.HistoryBound {
		s.OutputHistory = s.OutputHistory[len(s.OutputHistory)-s.HistoryBound:]
	}
	s.LastTimestamp = p.Timestamp
	s.HasLastTS = true
	s.Lifecycle = Ready
}

// Fail transitions the node to Failed with the given reason. Failed is
// sticky for the remainder of this propagation step; descendants are the
// caller's responsibility to skip.
func (s *NodePushState) Fail(reason string) {
	s.Lifecycle = Failed
	s.FailureReason = reason
}

// Latest returns the most recently emitted point, if any.
func (s *NodePushState) Latest() (types.Point, bool) {
	if len(s.OutputHistory) == 0 {
		return types.Point{}, false
	}
	return s.OutputHistory[len(s.OutputHistory)-1], true
}

// History returns a copy of the emitted points so callers cannot mutate
// engine state.
func (s *NodePushState) History() []types.Point {
	out := make([]types.Point, len(s.OutputHistory))
	copy(out, s.OutputHistory)
	return out
}

// ValidateMonotonic checks that ts is strictly after the last recorded
// timestamp, if any.
func (s *NodePushState) ValidateMonotonic(ts time.Time) error {
	if s.HasLastTS && !ts.After(s.LastTimestamp) {
		return fmt.Errorf("state: timestamp %s is not strictly after last timestamp %s", ts, s.LastTimestamp)
	}
	return nil
}
