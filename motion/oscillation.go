package motion

import (
	"fmt"

	"beltctl/core"
)

// oscMinStepDelayUS is the floor inter-step spacing the oscillation
// controller uses while chasing its continuously-recomputed target
// position; the waveform's own math, not a user speed level, governs how
// fast the target actually moves.
const oscMinStepDelayUS = 20

// oscMaxCatchupSteps bounds how many steps Process may emit in one tick to
// catch up to a target that moved faster than the engine polled it.
const oscMaxCatchupSteps = 8

// OscillationController authors a continuous target position from a
// waveform and drives current_step toward it every tick.
type OscillationController struct {
	motor    *MotorDriver
	contacts *ContactSensors
	pc       PlatformConstants
	rng      Source

	Config  OscillationConfig
	staged  OscillationConfig
	staging bool

	State OscillationState

	lastStepUS uint32
}

// NewOscillationController wires a controller over the shared motor,
// contacts, platform constants and RNG (for the cycle-pause duration draw).
func NewOscillationController(motor *MotorDriver, contacts *ContactSensors, pc PlatformConstants, rng Source) *OscillationController {
	return &OscillationController{motor: motor, contacts: contacts, pc: pc, rng: rng}
}

// ValidateAmplitude rejects a center/amplitude pair that would place either
// swing endpoint outside [0, effectiveMaxMM].
func ValidateAmplitude(centerMM, amplitudeMM, effectiveMaxMM float64) error {
	minPos := centerMM - amplitudeMM
	maxPos := centerMM + amplitudeMM
	if minPos < 0 {
		return fmt.Errorf("oscillation: center %.1fmm minus amplitude %.1fmm = %.1fmm is below 0", centerMM, amplitudeMM, minPos)
	}
	if maxPos > effectiveMaxMM {
		return fmt.Errorf("oscillation: center %.1fmm plus amplitude %.1fmm = %.1fmm exceeds effective max %.1fmm", centerMM, amplitudeMM, maxPos, effectiveMaxMM)
	}
	return nil
}

// SetConfig stages a full oscillation config; the controller reads it on
// the next Start, leaving a run already in progress on its current config.
func (o *OscillationController) SetConfig(cfg OscillationConfig) {
	o.staged = cfg
	o.staging = true
}

// SetFrequency stages a smooth transition of the running frequency over
// transitionMS (0 applies immediately). The frequency, center, and
// amplitude transitions run independently of one another.
func (o *OscillationController) SetFrequency(hz float64, transitionMS, nowMS uint32) {
	cur := o.State.FreqTransition.valueAt(nowMS)
	o.Config.FrequencyHz = hz
	if transitionMS > 0 {
		o.State.FreqTransition.start(nowMS, cur, hz, transitionMS)
	} else {
		o.State.FreqTransition = linearTransition{Target: hz}
	}
}

// SetCenter stages a smooth transition of the running center over
// transitionMS.
func (o *OscillationController) SetCenter(mm float64, transitionMS, nowMS uint32) {
	cur := o.State.CenterTransition.valueAt(nowMS)
	o.Config.CenterMM = mm
	if transitionMS > 0 {
		o.State.CenterTransition.start(nowMS, cur, mm, transitionMS)
	} else {
		o.State.CenterTransition = linearTransition{Target: mm}
	}
}

// SetAmplitude stages a smooth transition of the running amplitude over
// transitionMS.
func (o *OscillationController) SetAmplitude(mm float64, transitionMS, nowMS uint32) {
	cur := o.State.AmplitudeTransition.valueAt(nowMS)
	o.Config.AmplitudeMM = mm
	if transitionMS > 0 {
		o.State.AmplitudeTransition.start(nowMS, cur, mm, transitionMS)
	} else {
		o.State.AmplitudeTransition = linearTransition{Target: mm}
	}
}

// Start validates calibration and the amplitude window, applies any staged
// config, resets per-run state, and arms initial positioning toward
// center-amplitude.
func (o *OscillationController) Start(sys *SystemConfig) error {
	if sys.TotalDistanceMM <= 0 {
		return ErrNotCalibrated
	}
	if o.staging {
		o.Config = o.staged
		o.staging = false
	}
	if err := ValidateAmplitude(o.Config.CenterMM, o.Config.AmplitudeMM, sys.EffectiveMaxDistanceMM); err != nil {
		return err
	}
	o.State = OscillationState{
		IsInitialPositioning: true,
		FreqTransition:       linearTransition{Target: o.Config.FrequencyHz},
		CenterTransition:     linearTransition{Target: o.Config.CenterMM},
		AmplitudeTransition:  linearTransition{Target: o.Config.AmplitudeMM},
	}
	sys.CurrentState = StateRunning
	return nil
}

// Stop halts the motor and drops to READY, clearing the pause timer.
func (o *OscillationController) Stop(sys *SystemConfig) {
	sys.CurrentState = StateReady
	o.motor.Stop()
	o.State.Pause = CyclePauseState{}
}

// ResumeFromPause resets the phase clock's reference tick so the elapsed
// wall-clock time spent paused doesn't get folded into the next phase
// advance as a jerk.
func (o *OscillationController) ResumeFromPause(nowMS uint32) {
	o.State.LastPhaseUpdateMS = nowMS
}

// Process advances the oscillation controller by at most one tick's worth
// of target-chasing steps.
func (o *OscillationController) Process(nowUS, nowMS uint32, currentStep *int32, sys *SystemConfig) Event {
	if sys.CurrentState != StateRunning {
		return EventNone
	}

	if o.State.Pause.IsPausing {
		if core.ElapsedMS(nowMS, o.State.Pause.StartMS) >= o.State.Pause.CurrentDurationMS {
			o.State.Pause.IsPausing = false
			// the paused interval must not fold into the next phase advance
			o.State.LastPhaseUpdateMS = nowMS
		} else {
			return EventNone
		}
	}

	if o.contacts.CheckHardDriftStart(*currentStep, o.pc) || o.contacts.CheckHardDriftEnd(*currentStep, sys.MaxStep, o.pc) {
		return o.fault(nowUS, currentStep, sys)
	}

	if o.State.IsInitialPositioning {
		return o.processInitialPositioning(nowUS, nowMS, currentStep, sys)
	}
	if o.State.IsReturning {
		return o.processReturning(nowUS, nowMS, currentStep, sys)
	}
	if o.State.IsRampingOut {
		if core.ElapsedMS(nowMS, o.State.RampStartMS) >= o.Config.RampOutMS {
			return o.finishRun(sys)
		}
	}

	amp := o.effectiveAmplitude(nowMS)
	center := o.State.CenterTransition.valueAt(nowMS)
	rawF := o.State.FreqTransition.valueAt(nowMS)
	freq, capped := effectiveOscFrequency(rawF, amp, o.pc)
	if capped && core.ElapsedMS(nowMS, o.State.lastCapWarnMS) >= 1000 {
		Logf("oscillation: frequency capped for amplitude")
		o.State.lastCapWarnMS = nowMS
	}

	dtMS := core.ElapsedMS(nowMS, o.State.LastPhaseUpdateMS)
	o.State.AccumulatedPhase += freq * float64(dtMS) / 1000.0
	o.State.LastPhaseUpdateMS = nowMS

	phi := fracPart(o.State.AccumulatedPhase)
	wrapped := phi < o.State.LastPhase
	o.State.LastPhase = phi
	if wrapped {
		o.State.CompletedCycles++
		if evt := o.onCycleComplete(nowUS, nowMS, sys); evt != EventNone {
			return evt
		}
		if o.State.IsRampingOut || o.State.Pause.IsPausing {
			return EventNone
		}
	}

	targetMM := center + amp*waveformValue(o.Config.Wave, phi)
	targetStep := sys.MinStep + mmToSteps(targetMM, o.pc.StepsPerMM)
	moved := stepToward(o.motor, currentStep, targetStep, oscMinStepDelayUS, &o.lastStepUS, nowUS, oscMaxCatchupSteps)
	if moved == oscMaxCatchupSteps && *currentStep != targetStep && core.ElapsedMS(nowMS, o.State.lastCapWarnMS) >= 1000 {
		Logf("oscillation: behind schedule, catching up")
		o.State.lastCapWarnMS = nowMS
	}
	return EventNone
}

func (o *OscillationController) effectiveAmplitude(nowMS uint32) float64 {
	base := o.State.AmplitudeTransition.valueAt(nowMS)
	if o.State.IsRampingIn {
		if o.Config.RampInMS == 0 {
			o.State.IsRampingIn = false
			return base
		}
		elapsed := core.ElapsedMS(nowMS, o.State.RampStartMS)
		if elapsed >= o.Config.RampInMS {
			o.State.IsRampingIn = false
			return base
		}
		return base * float64(elapsed) / float64(o.Config.RampInMS)
	}
	if o.State.IsRampingOut {
		if o.Config.RampOutMS == 0 {
			return 0
		}
		elapsed := core.ElapsedMS(nowMS, o.State.RampStartMS)
		if elapsed >= o.Config.RampOutMS {
			return 0
		}
		return base * (1 - float64(elapsed)/float64(o.Config.RampOutMS))
	}
	return base
}

func (o *OscillationController) processInitialPositioning(nowUS, nowMS uint32, currentStep *int32, sys *SystemConfig) Event {
	target := sys.MinStep + mmToSteps(o.Config.CenterMM-o.Config.AmplitudeMM, o.pc.StepsPerMM)
	stepToward(o.motor, currentStep, target, oscMinStepDelayUS, &o.lastStepUS, nowUS, 1)
	if *currentStep == target {
		o.State.IsInitialPositioning = false
		o.State.AccumulatedPhase = 0
		o.State.LastPhase = 0
		o.State.LastPhaseUpdateMS = nowMS
		o.State.RampStartMS = nowMS
		if o.Config.RampInMS > 0 {
			o.State.IsRampingIn = true
		}
	}
	return EventNone
}

func (o *OscillationController) processReturning(nowUS, nowMS uint32, currentStep *int32, sys *SystemConfig) Event {
	target := sys.MinStep + mmToSteps(o.Config.CenterMM, o.pc.StepsPerMM)
	stepToward(o.motor, currentStep, target, oscMinStepDelayUS, &o.lastStepUS, nowUS, 1)
	if *currentStep == target {
		o.State.IsReturning = false
		sys.CurrentState = StateReady
		o.motor.Stop()
		return EventCycleComplete
	}
	return EventNone
}

func (o *OscillationController) onCycleComplete(nowUS, nowMS uint32, sys *SystemConfig) Event {
	core.RecordTiming(core.EvtCycleComplete, 0, nowUS, o.State.CompletedCycles, 0)
	if o.Config.TargetCycleCount > 0 && o.State.CompletedCycles >= o.Config.TargetCycleCount {
		if o.Config.RampOutMS > 0 {
			o.State.IsRampingOut = true
			o.State.RampStartMS = nowMS
			return EventNone
		}
		return o.finishRun(sys)
	}
	if o.Config.CyclePause.Enabled {
		dur := o.Config.CyclePause.FixedDurationS
		if o.Config.CyclePause.IsRandom {
			dur = FloatRange(o.rng, o.Config.CyclePause.MinS, o.Config.CyclePause.MaxS)
		}
		o.State.Pause.IsPausing = true
		o.State.Pause.StartMS = nowMS
		o.State.Pause.CurrentDurationMS = uint32(dur * 1000)
	}
	return EventNone
}

func (o *OscillationController) finishRun(sys *SystemConfig) Event {
	o.State.IsRampingOut = false
	if o.Config.ReturnToCenter {
		o.State.IsReturning = true
		return EventNone
	}
	sys.CurrentState = StateReady
	o.motor.Stop()
	return EventCycleComplete
}

func (o *OscillationController) fault(nowUS uint32, currentStep *int32, sys *SystemConfig) Event {
	sys.CurrentState = StateError
	o.motor.Stop()
	core.RecordTiming(core.EvtSafetyFault, 0, nowUS, uint32(*currentStep), 0)
	return EventSafetyFault
}
