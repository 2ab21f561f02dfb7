package state

import (
	"testing"
	"time"

	"github.com/tm1ddleton/analytics/internal/analytics/types"
)

func TestNewNodePushStateStartsUninitialized(t *testing.T) {
	s := NewNodePushState(0)
	if s.Lifecycle != Uninitialized {
		t.Errorf("Lifecycle = %v, want Uninitialized", s.Lifecycle)
	}
	if _, ok := s.Latest(); ok {
		t.Error("expected no latest point before any emission")
	}
}

func TestEmitTransitionsToReady(t *testing.T) {
	s := NewNodePushState(0)
	s.BeginStep()
	if s.Lifecycle != Computing {
		t.Errorf("Lifecycle after BeginStep = %v, want Computing", s.Lifecycle)
	}

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Emit(types.Point{Timestamp: ts, Value: 1.5})

	if s.Lifecycle != Ready {
		t.Errorf("Lifecycle after Emit = %v, want Ready", s.Lifecycle)
	}
	latest, ok := s.Latest()
	if !ok || latest.Value != 1.5 {
		t.Errorf("Latest() = (%v, %v), want (1.5, true)", latest, ok)
	}
	if !s.LastTimestamp.Equal(ts) {
		t.Errorf("LastTimestamp = %v, want %v", s.LastTimestamp, ts)
	}
}

func TestFailIsSticky(t *testing.T) {
	s := NewNodePushState(0)
	s.BeginStep()
	s.Fail("missing parent")
	if s.Lifecycle != Failed {
		t.Errorf("Lifecycle = %v, want Failed", s.Lifecycle)
	}
	if s.FailureReason != "missing parent" {
		t.Errorf("FailureReason = %q", s.FailureReason)
	}
}

func TestHistoryBoundTrims(t *testing.T) {
	s := NewNodePushState(2)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Emit(types.Point{Timestamp: base.AddDate(0, 0, i), Value: float64(i)})
	}
	hist := s.History()
	if len(hist) != 2 {
		t.Fatalf("len(History()) = %d, want 2", len(hist))
	}
	if hist[0].Value != 3 || hist[1].Value != 4 {
		t.Errorf("History() = %v, want last two emissions", hist)
	}
}

func TestHistoryReturnsACopy(t *testing.T) {
	s := NewNodePushState(0)
	s.Emit(types.Point{Value: 1})
	hist := s.History()
	hist[0].Value = 999
	latest, _ := s.Latest()
	if latest.Value == 999 {
		t.Error("History() leaked a mutable reference to engine state")
	}
}

func TestValidateMonotonic(t *testing.T) {
	s := NewNodePushState(0)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Emit(types.Point{Timestamp: base, Value: 1})

	if err := s.ValidateMonotonic(base); err == nil {
		t.Error("expected error for non-increasing timestamp")
	}
	if err := s.ValidateMonotonic(base.Add(-time.Hour)); err == nil {
		t.Error("expected error for earlier timestamp")
	}
	if err := s.ValidateMonotonic(base.Add(time.Hour)); err != nil {
		t.Errorf("unexpected error for later timestamp: %v", err)
	}
}
