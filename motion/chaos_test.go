package motion

import "testing"

func newChaosRig(pc PlatformConstants) (*ChaosController, *fakeGPIO) {
	gpio := newFakeGPIO()
	backend := &fakeStepperBackend{}
	motor := NewMotorDriver(backend, gpio, pinEnable, 0)
	motor.Init(uint8(pinStep), uint8(pinDir), false, false)
	contacts, _ := NewContactSensors(gpio, pinStart, pinEnd, nil)
	rng := NewXorshiftSource(99)
	return NewChaosController(motor, contacts, pc, rng), gpio
}

func allPatternsEnabled() [numChaosPatterns]bool {
	var all [numChaosPatterns]bool
	for i := range all {
		all[i] = true
	}
	return all
}

func TestChaosStartNotCalibrated(t *testing.T) {
	c, _ := newChaosRig(DefaultPlatformConstants())
	sys := &SystemConfig{}
	c.Config.EnabledPatterns = allPatternsEnabled()
	if err := c.Start(sys); err != ErrNotCalibrated {
		t.Errorf("expected ErrNotCalibrated, got %v", err)
	}
}

func TestChaosStartRefusesWithNoPatternsEnabled(t *testing.T) {
	pc := DefaultPlatformConstants()
	c, _ := newChaosRig(pc)
	sys := &SystemConfig{TotalDistanceMM: 100, MaxStep: 100, LimitPercent: 100}
	sys.recomputeEffectiveMax()
	if err := c.Start(sys); err != ErrNoPatternsEnabled {
		t.Errorf("expected ErrNoPatternsEnabled, got %v", err)
	}
}

func TestChaosPositionsToCenterBeforePatterns(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.StepsPerMM = 1
	c, _ := newChaosRig(pc)
	sys := &SystemConfig{TotalDistanceMM: 1000, MaxStep: 1000, LimitPercent: 100}
	sys.recomputeEffectiveMax()
	c.Config.EnabledPatterns = allPatternsEnabled()
	c.Config.CenterMM = 200
	c.Config.AmplitudeMM = 50
	c.Config.MaxSpeedLevel = 10

	var pos int32 = 0
	if err := c.Start(sys); err != nil {
		t.Fatalf("Start: %v", err)
	}

	nowUS, nowMS := uint32(0), uint32(0)
	for i := 0; i < 500 && c.positioning; i++ {
		nowUS += 1000
		nowMS++
		c.State.lastStepUS = 0
		c.Process(nowUS, nowMS, &pos, sys)
	}
	if c.positioning {
		t.Fatalf("expected positioning to complete, pos=%d", pos)
	}
	if pos != 200 {
		t.Errorf("expected carriage parked at center=200, got %d", pos)
	}
	if c.PatternsExecuted != 1 {
		t.Errorf("expected first pattern pick counted, got %d", c.PatternsExecuted)
	}
}

func TestChaosStaysWithinAmplitudeAndTravelBounds(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.StepsPerMM = 1
	c, _ := newChaosRig(pc)
	sys := &SystemConfig{TotalDistanceMM: 1000, MaxStep: 1000, LimitPercent: 100}
	sys.recomputeEffectiveMax()
	c.Config.EnabledPatterns = allPatternsEnabled()
	c.Config.CenterMM = 500
	c.Config.AmplitudeMM = 100
	c.Config.MaxSpeedLevel = 15
	c.Config.Craziness = 50

	var pos int32 = 500
	if err := c.Start(sys); err != nil {
		t.Fatalf("Start: %v", err)
	}

	nowUS, nowMS := uint32(0), uint32(0)
	for i := 0; i < 20000; i++ {
		nowUS += 500
		nowMS++
		c.State.lastStepUS = 0
		c.Process(nowUS, nowMS, &pos, sys)
		if pos < 400-1 || pos > 600+1 {
			t.Fatalf("tick %d: position %d escaped the amplitude window [400,600]", i, pos)
		}
		if pos < sys.MinStep || pos > sys.MaxStep {
			t.Fatalf("tick %d: position %d escaped physical travel", i, pos)
		}
	}
}

func TestChaosDurationTimeoutStopsWithCycleComplete(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.StepsPerMM = 1
	c, _ := newChaosRig(pc)
	sys := &SystemConfig{TotalDistanceMM: 1000, MaxStep: 1000, LimitPercent: 100}
	sys.recomputeEffectiveMax()
	c.Config.EnabledPatterns = allPatternsEnabled()
	c.Config.CenterMM = 500
	c.Config.AmplitudeMM = 50
	c.Config.MaxSpeedLevel = 10
	c.Config.TotalDurationS = 0.05

	var pos int32 = 500
	if err := c.Start(sys); err != nil {
		t.Fatalf("Start: %v", err)
	}

	nowUS, nowMS := uint32(0), uint32(0)
	var evt Event
	for i := 0; i < 5000 && sys.CurrentState == StateRunning; i++ {
		nowUS += 1000
		nowMS++
		c.State.lastStepUS = 0
		evt = c.Process(nowUS, nowMS, &pos, sys)
	}
	if evt != EventCycleComplete {
		t.Fatalf("expected EventCycleComplete on duration timeout, got %v", evt)
	}
	if sys.CurrentState != StateReady {
		t.Errorf("expected READY after timeout, got %v", sys.CurrentState)
	}
}

func TestChaosHardDriftFault(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.StepsPerMM = 1
	pc.HardDriftTestZoneMM = 900
	c, gpio := newChaosRig(pc)
	sys := &SystemConfig{TotalDistanceMM: 1000, MaxStep: 1000, LimitPercent: 100}
	sys.recomputeEffectiveMax()
	c.Config.EnabledPatterns = allPatternsEnabled()
	c.Config.CenterMM = 500
	c.Config.AmplitudeMM = 50
	c.Config.MaxSpeedLevel = 10

	var pos int32 = 500
	if err := c.Start(sys); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.positioning = false
	gpio.pins[pinEnd] = false // pressed

	evt := c.Process(1, 1, &pos, sys)
	if evt != EventSafetyFault {
		t.Fatalf("expected EventSafetyFault, got %v", evt)
	}
	if sys.CurrentState != StateError {
		t.Errorf("expected ERROR state, got %v", sys.CurrentState)
	}
}

func TestChaosSelectPatternOnlyReturnsEnabled(t *testing.T) {
	pc := DefaultPlatformConstants()
	c, _ := newChaosRig(pc)
	c.Config.EnabledPatterns[PatternDrift] = true
	for i := 0; i < 200; i++ {
		if got := c.selectPattern(); got != PatternDrift {
			t.Fatalf("expected only PatternDrift to be selectable, got %v", got)
		}
	}
}
