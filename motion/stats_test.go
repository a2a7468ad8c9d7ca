package motion

import (
	"testing"

	"beltctl/core"
)

func TestStatsTrackDeltaAccumulatesAbsoluteDistance(t *testing.T) {
	s := NewStatsTracking(core.NewStateLock())
	s.TrackDelta(0)
	s.TrackDelta(10)
	s.TrackDelta(4)
	s.TrackDelta(4)
	if got := s.Snapshot(); got != 16 {
		t.Errorf("expected 10 forward + 6 back = 16 total steps, got %d", got)
	}
}

func TestStatsMarkSavedReturnsIncrementSinceLastSave(t *testing.T) {
	s := NewStatsTracking(core.NewStateLock())
	s.TrackDelta(0)
	s.TrackDelta(100)
	if got := s.MarkSaved(); got != 100 {
		t.Fatalf("expected first save increment 100, got %d", got)
	}
	if got := s.MarkSaved(); got != 0 {
		t.Errorf("expected no increment on immediate re-save, got %d", got)
	}
	s.TrackDelta(150)
	if got := s.MarkSaved(); got != 50 {
		t.Errorf("expected increment 50 since last save, got %d", got)
	}
}

func TestStatsResetZeroesTotal(t *testing.T) {
	s := NewStatsTracking(core.NewStateLock())
	s.TrackDelta(0)
	s.TrackDelta(500)
	s.Reset()
	if got := s.Snapshot(); got != 0 {
		t.Errorf("expected 0 after reset, got %d", got)
	}
}
