package motion

import "beltctl/core"

// stepToward advances *currentStep by up to maxSteps pulses toward target,
// respecting stepDelayUS spacing since *lastStepUS and the motor's
// direction-change hold time. Shared by Oscillation, Chaos, and Pursuit —
// the three controllers that chase a continuously-recomputed target step
// rather than running VAET's fixed start/target window. Returns the
// number of steps actually emitted (less than maxSteps means the delay
// window or the direction hold wasn't clear yet, not that the target was
// reached — check *currentStep == target for that).
//
// Catch-up steps advance *lastStepUS by stepDelayUS rather than snapping it
// to nowUS, so a caller polling slower than the step rate can still emit
// several pulses in one call instead of being limited to one regardless of
// how far behind schedule it is.
func stepToward(motor *MotorDriver, currentStep *int32, target int32, stepDelayUS uint32, lastStepUS *uint32, nowUS uint32, maxSteps int) int {
	if maxSteps <= 0 {
		maxSteps = 1
	}
	// virtual is the evenly-spaced time the previous step "should" have
	// landed at; advancing it by stepDelayUS per emitted step (rather than
	// snapping it to nowUS) is what lets a second, third, ... catch-up step
	// clear the delay gate within the same call.
	virtual := *lastStepUS
	if virtual == 0 {
		virtual = nowUS - stepDelayUS
	}
	emitted := 0
	for emitted < maxSteps && *currentStep != target {
		if core.ElapsedUS(nowUS, virtual) < stepDelayUS {
			break
		}
		forward := target > *currentStep
		motor.SetDirection(forward)
		if !motor.ReadyForStep(nowUS) {
			break
		}
		motor.Step()
		if forward {
			*currentStep++
		} else {
			*currentStep--
		}
		virtual += stepDelayUS
		emitted++
	}
	if emitted > 0 {
		*lastStepUS = virtual
	}
	return emitted
}

// fracPart returns the fractional part of a non-negative float64, used to
// derive the normalized waveform phase from a monotonically-growing
// accumulated phase.
func fracPart(v float64) float64 {
	whole := float64(int64(v))
	return v - whole
}
