package motion

import "testing"

func newSequencerRig(pc PlatformConstants) (*Sequencer, *VAETController, *OscillationController, *ChaosController) {
	gpio := newFakeGPIO()
	backend := &fakeStepperBackend{}
	motor := NewMotorDriver(backend, gpio, pinEnable, 0)
	motor.Init(uint8(pinStep), uint8(pinDir), false, false)
	contacts, _ := NewContactSensors(gpio, pinStart, pinEnd, nil)
	rng := NewXorshiftSource(7)

	vaet := NewVAETController(motor, contacts, pc, rng)
	osc := NewOscillationController(motor, contacts, pc, rng)
	chaos := NewChaosController(motor, contacts, pc, rng)
	return NewSequencer(vaet, osc, chaos), vaet, osc, chaos
}

func TestSequencerAddUpdateDeleteMove(t *testing.T) {
	seq, _, _, _ := newSequencerRig(DefaultPlatformConstants())

	id1, err := seq.AddLine(SequenceLine{Enabled: true, Movement: MovementVAET})
	if err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	id2, err := seq.AddLine(SequenceLine{Enabled: true, Movement: MovementOscillation})
	if err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if seq.LineCount() != 2 {
		t.Fatalf("expected 2 lines, got %d", seq.LineCount())
	}

	if err := seq.UpdateLine(id1, SequenceLine{Enabled: false, Movement: MovementChaos}); err != nil {
		t.Fatalf("UpdateLine: %v", err)
	}
	lines := seq.ExportLines()
	if lines[0].Movement != MovementChaos || lines[0].Enabled {
		t.Errorf("expected line 0 updated to disabled CHAOS, got %+v", lines[0])
	}

	if err := seq.MoveLine(id2, 0); err != nil {
		t.Fatalf("MoveLine: %v", err)
	}
	lines = seq.ExportLines()
	if lines[0].ID != id2 {
		t.Errorf("expected line 2 moved to index 0, got id=%d", lines[0].ID)
	}

	if err := seq.DeleteLine(id1); err != nil {
		t.Fatalf("DeleteLine: %v", err)
	}
	if seq.LineCount() != 1 {
		t.Errorf("expected 1 line after delete, got %d", seq.LineCount())
	}

	if err := seq.DeleteLine(999); err != ErrSequenceLineNotFound {
		t.Errorf("expected ErrSequenceLineNotFound, got %v", err)
	}
}

func TestSequencerStartRefusesEmptyProgram(t *testing.T) {
	seq, _, _, _ := newSequencerRig(DefaultPlatformConstants())
	sys := &SystemConfig{TotalDistanceMM: 1000, MaxStep: 1000, LimitPercent: 100}
	sys.recomputeEffectiveMax()
	var active MovementType
	if err := seq.Start(false, 0, sys, &active); err != ErrSequenceProgramEmpty {
		t.Errorf("expected ErrSequenceProgramEmpty, got %v", err)
	}
}

func TestSequencerRunsLinesAndStopsAtEndWithoutLoop(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.StepsPerMM = 1
	seq, _, osc, _ := newSequencerRig(pc)
	sys := &SystemConfig{TotalDistanceMM: 1000, MaxStep: 1000, LimitPercent: 100}
	sys.recomputeEffectiveMax()

	seq.AddLine(SequenceLine{
		Enabled:  true,
		Movement: MovementOscillation,
		Osc: OscillationConfig{
			CenterMM:    500,
			AmplitudeMM: 20,
			FrequencyHz: 10,
			Wave:        WaveformSine,
		},
		CycleCount: 1,
	})

	var pos int32 = 500
	var active MovementType
	if err := seq.Start(false, pos, sys, &active); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if active != MovementOscillation {
		t.Fatalf("expected active movement OSCILLATION, got %v", active)
	}
	if osc.Config.TargetCycleCount != 1 {
		t.Fatalf("expected line cycle count forwarded to oscillation, got %d", osc.Config.TargetCycleCount)
	}

	nowUS, nowMS := uint32(0), uint32(0)
	for i := 0; i < 100000 && seq.State.IsRunning; i++ {
		nowUS += 500
		nowMS++
		osc.lastStepUS = 0
		evt := osc.Process(nowUS, nowMS, &pos, sys)
		if evt == EventCycleComplete && sys.ExecutionContext == ContextSequencer {
			seq.OnControllerComplete(nowMS, pos, sys, &active)
		}
	}
	if seq.State.IsRunning {
		t.Fatalf("expected sequencer to stop after its single non-looping line finishes")
	}
	if sys.ExecutionContext != ContextStandalone {
		t.Errorf("expected execution context reset to standalone, got %v", sys.ExecutionContext)
	}
}

func TestSequencerLoopModeRestartsProgram(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.StepsPerMM = 1
	seq, _, osc, _ := newSequencerRig(pc)
	sys := &SystemConfig{TotalDistanceMM: 1000, MaxStep: 1000, LimitPercent: 100}
	sys.recomputeEffectiveMax()

	seq.AddLine(SequenceLine{
		Enabled:  true,
		Movement: MovementOscillation,
		Osc: OscillationConfig{
			CenterMM:    500,
			AmplitudeMM: 20,
			FrequencyHz: 20,
			Wave:        WaveformSine,
		},
		CycleCount: 1,
	})

	var pos int32 = 500
	var active MovementType
	if err := seq.Start(true, pos, sys, &active); err != nil {
		t.Fatalf("Start: %v", err)
	}

	nowUS, nowMS := uint32(0), uint32(0)
	for i := 0; i < 200000 && seq.State.LoopCount < 2; i++ {
		nowUS += 500
		nowMS++
		osc.lastStepUS = 0
		evt := osc.Process(nowUS, nowMS, &pos, sys)
		if evt == EventCycleComplete && sys.ExecutionContext == ContextSequencer {
			seq.OnControllerComplete(nowMS, pos, sys, &active)
		}
	}
	if seq.State.LoopCount < 2 {
		t.Fatalf("expected the program to loop at least twice, got loop_count=%d", seq.State.LoopCount)
	}
	if !seq.State.IsRunning {
		t.Errorf("expected the sequencer to still be running in loop mode")
	}
}

func TestSequencerSkipsDisabledLines(t *testing.T) {
	pc := DefaultPlatformConstants()
	pc.StepsPerMM = 1
	seq, vaet, _, _ := newSequencerRig(pc)
	sys := &SystemConfig{TotalDistanceMM: 1000, MaxStep: 1000, LimitPercent: 100}
	sys.recomputeEffectiveMax()

	seq.AddLine(SequenceLine{Enabled: false, Movement: MovementOscillation})
	seq.AddLine(SequenceLine{
		Enabled:    true,
		Movement:   MovementVAET,
		VAET:       MotionConfig{TargetDistanceMM: 10, SpeedForward: 20, SpeedBackward: 20},
		CycleCount: 1,
	})

	var pos int32 = 0
	var active MovementType
	if err := seq.Start(false, pos, sys, &active); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if active != MovementVAET {
		t.Fatalf("expected the disabled line skipped in favor of VAET, got %v", active)
	}
	if vaet.Motion.TargetDistanceMM != 10 {
		t.Errorf("expected VAET line config applied")
	}
}
