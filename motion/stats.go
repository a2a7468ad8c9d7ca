package motion

import "beltctl/core"

// statsLockTimeoutUS bounds how long a stats mutation waits for the stats
// mutex before giving up, mirroring the short-timeout-and-log discipline
// used for SystemConfig.
const statsLockTimeoutUS = 2000

// StatsTracking accumulates total distance traveled in steps. TrackDelta is
// the only method called from the motion core's hot path; it has a single
// writer (the tick loop) and needs no lock. Reset and MarkSaved are called
// from the service core and take the stats mutex.
type StatsTracking struct {
	lock core.StateLock

	TotalDistanceSteps int64
	lastSavedWatermark int64
	lastStep           int32
	haveLastStep       bool
}

// NewStatsTracking wires tracking over the given mutex.
func NewStatsTracking(lock core.StateLock) *StatsTracking {
	return &StatsTracking{lock: lock}
}

// TrackDelta folds the absolute distance the carriage moved since the last
// call into the running total. Safe to call every tick without locking: it
// only ever runs on the motion core, and only ever accumulates.
func (s *StatsTracking) TrackDelta(currentStep int32) {
	if !s.haveLastStep {
		s.lastStep = currentStep
		s.haveLastStep = true
		return
	}
	delta := currentStep - s.lastStep
	if delta < 0 {
		delta = -delta
	}
	s.TotalDistanceSteps += int64(delta)
	s.lastStep = currentStep
}

// Snapshot returns the current total under the stats mutex, for telemetry.
func (s *StatsTracking) Snapshot() int64 {
	if !s.lock.TryLock(statsLockTimeoutUS) {
		Logf("stats: snapshot lock timeout, returning possibly-stale total")
		return s.TotalDistanceSteps
	}
	defer s.lock.Unlock()
	return s.TotalDistanceSteps
}

// MarkSaved records the current total as the last-persisted watermark and
// returns the increment since the previous save, for the platform's
// append-only daily statistics file.
func (s *StatsTracking) MarkSaved() int64 {
	if !s.lock.TryLock(statsLockTimeoutUS) {
		Logf("stats: mark-saved lock timeout, skipping")
		return 0
	}
	defer s.lock.Unlock()
	delta := s.TotalDistanceSteps - s.lastSavedWatermark
	s.lastSavedWatermark = s.TotalDistanceSteps
	return delta
}

// Reset zeroes the running total and watermark (used when a service
// operator explicitly clears cumulative stats; not called by any normal
// motion-core path).
func (s *StatsTracking) Reset() {
	if !s.lock.TryLock(statsLockTimeoutUS) {
		Logf("stats: reset lock timeout, skipping")
		return
	}
	defer s.lock.Unlock()
	s.TotalDistanceSteps = 0
	s.lastSavedWatermark = 0
}
