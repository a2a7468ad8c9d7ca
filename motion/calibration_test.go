package motion

import (
	"testing"

	"beltctl/core"
)

// newCalRig builds a CalibrationManager with zero step/decontact delay so
// tests can drive it call-by-call without needing to simulate real time.
func newCalRig(pc PlatformConstants) (*CalibrationManager, *fakeGPIO, *MotorDriver) {
	gpio := newFakeGPIO()
	backend := &fakeStepperBackend{}
	motor := NewMotorDriver(backend, gpio, pinEnable, 0)
	motor.Init(uint8(pinStep), uint8(pinDir), false, false)
	contacts, _ := NewContactSensors(gpio, pinStart, pinEnd, nil)
	cal := NewCalibrationManager(motor, contacts, pc)
	cal.stepDelayUS = 0
	cal.decontactUS = 0
	return cal, gpio, motor
}

// driveUntil calls Process repeatedly until state differs from start, an
// event is returned, or maxIter ticks elapse (a stuck contact never seen).
func driveUntil(cal *CalibrationManager, pos *int32, maxIter int) Event {
	start := cal.state
	for i := 0; i < maxIter; i++ {
		evt := cal.Process(uint32(i+1), pos)
		if evt != EventNone || cal.state != start {
			return evt
		}
	}
	return EventNone
}

func TestCalibrationMovingToStartStepsUntilContact(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.CalibrationWatchdogSteps = 50
	cal, gpio, _ := newCalRig(pc)
	cal.Start()

	var pos int32 = 500
	for i := 0; i < 3; i++ {
		if evt := cal.Process(uint32(i), &pos); evt != EventNone {
			t.Fatalf("unexpected event %v before contact", evt)
		}
	}
	if pos != 497 {
		t.Errorf("expected position to decrease by 3 steps, got %d", pos)
	}
	if cal.state != CalMovingToStart {
		t.Errorf("expected still moving to start, got %v", cal.state)
	}

	gpio.pins[pinStart] = false // pressed
	if evt := cal.Process(10, &pos); evt != EventNone {
		t.Errorf("transition itself should not emit an event, got %v", evt)
	}
	if cal.state != CalLeavingStart {
		t.Errorf("expected transition to leaving-start, got %v", cal.state)
	}
}

func TestCalibrationLeavingStartZeroesPositionAndAdvances(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.SafetyOffsetSteps = 3
	pc.CalibrationWatchdogSteps = 50
	cal, gpio, _ := newCalRig(pc)
	cal.state = CalLeavingStart
	gpio.pins[pinStart] = false // still pressed on entry

	var pos int32 = -50

	// still in contact: steps forward without decontacting
	if evt := cal.Process(1, &pos); evt != EventNone || pos != -49 {
		t.Fatalf("expected a step while still in contact, pos=%d evt=%v", pos, evt)
	}
	if cal.decontacted {
		t.Errorf("should still report in contact")
	}

	gpio.pins[pinStart] = true // release
	evt := driveUntil(cal, &pos, 20)
	if evt != EventNone {
		t.Errorf("leaving start to moving-to-end should not emit an event, got %v", evt)
	}
	if cal.state != CalMovingToEnd {
		t.Errorf("expected advance to moving-to-end, got %v", cal.state)
	}
	if pos != 0 {
		t.Errorf("expected position zeroed at start, got %d", pos)
	}
	if cal.StartStep != 0 {
		t.Errorf("expected StartStep recorded as 0, got %d", cal.StartStep)
	}
}

func TestCalibrationReturnToStartFinishesWithoutDiscoveringEnd(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.SafetyOffsetSteps = 2
	pc.CalibrationWatchdogSteps = 50
	cal, gpio, _ := newCalRig(pc)
	cal.StartReturnToStart()

	var pos int32 = 1200
	// approach start
	for i := 0; i < 40 && cal.state == CalMovingToStart; i++ {
		gpio.pins[pinStart] = false // press once close enough; majority vote settles immediately
		cal.Process(uint32(i), &pos)
	}
	if cal.state != CalLeavingStart {
		t.Fatalf("expected leaving-start after approach, got %v", cal.state)
	}

	gpio.pins[pinStart] = true // release for decontact
	evt := driveUntil(cal, &pos, 20)
	if evt != EventCalibrationDone {
		t.Errorf("expected EventCalibrationDone from return-to-start, got %v", evt)
	}
	if cal.state != CalFinished {
		t.Errorf("expected CalFinished, got %v", cal.state)
	}
	if pos != 0 {
		t.Errorf("expected position zeroed, got %d", pos)
	}
}

func TestCalibrationMovingToEndDetectsContact(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.CalibrationWatchdogSteps = 50
	cal, gpio, _ := newCalRig(pc)
	cal.state = CalMovingToEnd

	var pos int32 = 0
	for i := 0; i < 5; i++ {
		if evt := cal.Process(uint32(i), &pos); evt != EventNone {
			t.Fatalf("unexpected event %v before end contact", evt)
		}
	}
	if pos != 5 {
		t.Errorf("expected position to advance by 5 steps, got %d", pos)
	}

	gpio.pins[pinEnd] = false // pressed
	if evt := cal.Process(10, &pos); evt != EventNone {
		t.Errorf("transition itself should not emit an event, got %v", evt)
	}
	if cal.state != CalLeavingEnd {
		t.Errorf("expected transition to leaving-end, got %v", cal.state)
	}
}

func TestCalibrationLeavingEndFinalizesTotalDistance(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.SafetyOffsetSteps = 2
	pc.StepsPerMM = 80
	pc.CalibrationWatchdogSteps = 50
	cal, gpio, _ := newCalRig(pc)
	cal.state = CalLeavingEnd
	gpio.pins[pinEnd] = false // still pressed on entry

	var pos int32 = 8000

	if evt := cal.Process(1, &pos); evt != EventNone || pos != 7999 {
		t.Fatalf("expected a step while still in contact, pos=%d evt=%v", pos, evt)
	}

	gpio.pins[pinEnd] = true // release
	evt := driveUntil(cal, &pos, 20)
	if evt != EventCalibrationDone {
		t.Fatalf("expected EventCalibrationDone, got %v", evt)
	}
	if cal.state != CalFinished {
		t.Errorf("expected CalFinished, got %v", cal.state)
	}
	if cal.EndStep != pos {
		t.Errorf("expected EndStep to match final position, got EndStep=%d pos=%d", cal.EndStep, pos)
	}
	wantMM := stepsToMM(cal.EndStep, pc.StepsPerMM)
	if cal.TotalDistanceMM != wantMM {
		t.Errorf("expected TotalDistanceMM=%v, got %v", wantMM, cal.TotalDistanceMM)
	}
}

func TestCalibrationWatchdogTripsOnStuckApproach(t *testing.T) {
	// the trip latches the firmware-wide shutdown flag
	t.Cleanup(core.ResetShutdown)

	pc := DefaultPlatformConstants()
	pc.CalibrationWatchdogSteps = 5
	cal, _, _ := newCalRig(pc)
	cal.Start()

	var pos int32 = 0
	var lastEvt Event
	for i := 0; i < 20; i++ {
		lastEvt = cal.Process(uint32(i), &pos)
		if lastEvt != EventNone {
			break
		}
	}
	if lastEvt != EventCalibrationFailed {
		t.Fatalf("expected EventCalibrationFailed, got %v", lastEvt)
	}
	if cal.state != CalFailed || !cal.Failed {
		t.Errorf("expected CalFailed state with Failed flag set")
	}
}

func TestCalibrationActiveReportsProgress(t *testing.T) {
	pc := DefaultPlatformConstants()
	cal, _, _ := newCalRig(pc)
	if cal.Active() {
		t.Errorf("expected inactive before Start")
	}
	cal.Start()
	if !cal.Active() {
		t.Errorf("expected active after Start")
	}
	cal.state = CalFinished
	if cal.Active() {
		t.Errorf("expected inactive once finished")
	}
}
