package motion

import (
	"errors"

	"beltctl/core"
)

// ErrNotCalibrated is returned by a controller's Start when total travel
// hasn't been discovered yet.
var ErrNotCalibrated = errors.New("motion: axis not calibrated")

// VAETController drives the back-and-forth base movement between
// start_step and start_step + round(distance x STEPS_PER_MM).
// One Process call per engine tick advances it by at most one step.
type VAETController struct {
	motor    *MotorDriver
	contacts *ContactSensors
	pc       PlatformConstants
	rng      Source

	Motion  MotionConfig
	pending PendingMotionConfig

	startStep  int32
	targetStep int32

	movingForward   bool
	hasReachedStart bool

	lastStepUS uint32

	cyclePause CyclePauseState
	zone       ZoneEffectState

	lastCycleStartUS uint32
	LastCycleTimeUS  uint32
}

// NewVAETController wires a controller over the shared motor, contacts,
// platform tuning constants and a pseudo-random source for the
// zone-effect random-turnback and pause-duration draws.
func NewVAETController(motor *MotorDriver, contacts *ContactSensors, pc PlatformConstants, rng Source) *VAETController {
	return &VAETController{motor: motor, contacts: contacts, pc: pc, rng: rng, movingForward: true}
}

func (v *VAETController) recomputeEndpoints(sys *SystemConfig) {
	v.startStep = sys.MinStep + mmToSteps(v.Motion.StartPositionMM, v.pc.StepsPerMM)
	maxDist := sys.EffectiveMaxDistanceMM - v.Motion.StartPositionMM
	v.Motion.TargetDistanceMM = clampF(v.Motion.TargetDistanceMM, 0, maxDist)
	v.targetStep = v.startStep + mmToSteps(v.Motion.TargetDistanceMM, v.pc.StepsPerMM)
}

// SetDistance applies a new target distance immediately, or queues it for
// the next backward-to-forward pivot if the controller is running.
func (v *VAETController) SetDistance(mm float64, sys *SystemConfig, running bool) {
	if running {
		v.pending.MotionConfig = v.Motion
		v.pending.TargetDistanceMM = mm
		v.pending.Dirty = true
		return
	}
	v.Motion.TargetDistanceMM = mm
	v.recomputeEndpoints(sys)
}

// SetStartPosition applies or queues a new start position, clamped to
// [0, total] and auto-reducing distance if the window would overrun.
func (v *VAETController) SetStartPosition(mm float64, sys *SystemConfig, running bool) {
	mm = clampF(mm, 0, sys.EffectiveMaxDistanceMM)
	if running {
		v.pending.MotionConfig = v.Motion
		v.pending.StartPositionMM = mm
		v.pending.Dirty = true
		return
	}
	v.Motion.StartPositionMM = mm
	v.recomputeEndpoints(sys)
}

// SetSpeedForward applies or queues the forward speed level.
func (v *VAETController) SetSpeedForward(level float64, running bool) {
	if running {
		v.pending.MotionConfig = v.Motion
		v.pending.SpeedForward = level
		v.pending.Dirty = true
		return
	}
	v.Motion.SpeedForward = level
}

// SetSpeedBackward applies or queues the backward speed level.
func (v *VAETController) SetSpeedBackward(level float64, running bool) {
	if running {
		v.pending.MotionConfig = v.Motion
		v.pending.SpeedBackward = level
		v.pending.Dirty = true
		return
	}
	v.Motion.SpeedBackward = level
}

// SetCyclePause applies or queues the inter-cycle pause config.
func (v *VAETController) SetCyclePause(cfg CyclePauseConfig, running bool) {
	if running {
		v.pending.MotionConfig = v.Motion
		v.pending.CyclePause = cfg
		v.pending.Dirty = true
		return
	}
	v.Motion.CyclePause = cfg
}

// SetZoneEffect applies or queues the zone-effect config.
func (v *VAETController) SetZoneEffect(cfg ZoneEffectConfig, running bool) {
	if running {
		v.pending.MotionConfig = v.Motion
		v.pending.ZoneEffect = cfg
		v.pending.Dirty = true
		return
	}
	v.Motion.ZoneEffect = cfg
}

// Start validates calibration, chooses the initial direction based on
// where currentStep lies relative to the window, and arms the controller.
// The caller (Supervisor) is responsible for stopping any sequence owned
// by the user and setting MovementType = VAET.
func (v *VAETController) Start(currentStep int32, sys *SystemConfig) error {
	if sys.TotalDistanceMM <= 0 {
		return ErrNotCalibrated
	}
	v.recomputeEndpoints(sys)
	offset := currentStep - v.startStep
	if offset < 0 {
		offset = -offset
	}
	// starting within the threshold counts as already at start, so zone
	// effects and cycle completion arm without one full return leg first
	v.hasReachedStart = offset <= v.pc.WasAtStartThresholdSteps
	v.cyclePause = CyclePauseState{}
	v.zone = ZoneEffectState{}
	mid := (v.startStep + v.targetStep) / 2
	v.movingForward = currentStep < mid
	sys.CurrentState = StateRunning
	return nil
}

// Stop drops to READY, persists nothing itself (the caller snapshots
// stats), and clears pause states, leaving the motor enabled.
func (v *VAETController) Stop(sys *SystemConfig) {
	sys.CurrentState = StateReady
	v.cyclePause = CyclePauseState{}
	v.zone = ZoneEffectState{}
}

// Process advances the controller by at most one step this tick.
func (v *VAETController) Process(nowUS, nowMS uint32, currentStep *int32, sys *SystemConfig) Event {
	if sys.CurrentState != StateRunning {
		return EventNone
	}

	if v.cyclePause.IsPausing {
		if core.ElapsedMS(nowMS, v.cyclePause.StartMS) >= v.cyclePause.CurrentDurationMS {
			v.cyclePause.IsPausing = false
			v.movingForward = true
		} else {
			return EventNone
		}
	}

	if v.zone.IsPausing {
		if core.ElapsedMS(nowMS, v.zone.PauseStartMS) >= v.zone.PauseDurationMS {
			v.zone.IsPausing = false
		} else {
			return EventNone
		}
	}

	if v.contacts.CheckHardDriftStart(*currentStep, v.pc) || v.contacts.CheckHardDriftEnd(*currentStep, sys.MaxStep, v.pc) {
		return v.fault(nowUS, currentStep, sys)
	}

	baseDelay := vaetStepDelayUS(v.Motion.TargetDistanceMM, v.speedLevel(), v.pc)
	delay := baseDelay

	if (v.Motion.ZoneEffect.EnableStart || v.Motion.ZoneEffect.EnableEnd) && v.hasReachedStart {
		factor, turned := v.applyZoneEffects(nowMS, *currentStep)
		delay = uint32(float64(baseDelay) * factor)
		if turned {
			return EventNone
		}
	}

	if v.lastStepUS != 0 && core.ElapsedUS(nowUS, v.lastStepUS) < delay {
		return EventNone
	}

	if v.movingForward {
		return v.stepForward(nowUS, nowMS, currentStep, sys)
	}
	return v.stepBackward(nowUS, nowMS, currentStep, sys)
}

func (v *VAETController) speedLevel() float64 {
	if v.movingForward {
		return v.Motion.SpeedForward
	}
	return v.Motion.SpeedBackward
}

// applyZoneEffects evaluates the mirrored enable flags on the
// return leg, the speed factor for whichever zone(s) the carriage is
// inside, and the random-turnback roll/trigger for the zone ahead of
// travel. Returns the speed-delay multiplier and whether a turnback fired
// this tick (direction already flipped when true).
func (v *VAETController) applyZoneEffects(nowMS uint32, currentStep int32) (factor float64, turned bool) {
	zone := v.Motion.ZoneEffect
	if zone.ZoneMM <= 0 {
		return 1, false
	}
	enableStart, enableEnd := zone.EnableStart, zone.EnableEnd
	if zone.MirrorOnReturn && !v.movingForward {
		enableStart, enableEnd = enableEnd, enableStart
	}

	posMM := stepsToMM(currentStep-v.startStep, v.pc.StepsPerMM)
	distFromStart := posMM
	distFromEnd := v.Motion.TargetDistanceMM - posMM

	inStart := enableStart && distFromStart <= zone.ZoneMM
	inEnd := enableEnd && distFromEnd <= zone.ZoneMM

	factor = 1
	switch {
	case inStart && inEnd:
		fs := zoneSpeedFactor(zone.Effect, zone.Curve, zone.Intensity, distFromStart/zone.ZoneMM)
		fe := zoneSpeedFactor(zone.Effect, zone.Curve, zone.Intensity, distFromEnd/zone.ZoneMM)
		if zone.Effect == SpeedEffectAccel {
			factor = minF(fs, fe)
		} else {
			factor = maxF(fs, fe)
		}
	case inStart:
		factor = zoneSpeedFactor(zone.Effect, zone.Curve, zone.Intensity, distFromStart/zone.ZoneMM)
	case inEnd:
		factor = zoneSpeedFactor(zone.Effect, zone.Curve, zone.Intensity, distFromEnd/zone.ZoneMM)
	}

	var relevantDist float64
	var relevantEnabled bool
	if v.movingForward {
		relevantDist, relevantEnabled = distFromEnd, inEnd
	} else {
		relevantDist, relevantEnabled = distFromStart, inStart
	}

	if relevantEnabled && zone.RandomTurnback.Enabled && !v.zone.HasRolled {
		distIntoZone := zone.ZoneMM - relevantDist
		if distIntoZone < 2 {
			v.zone.HasRolled = true
			if Chance(v.rng, zone.RandomTurnback.PercentChance) {
				v.zone.HasPendingTurnback = true
				v.zone.TurnbackPointMM = FloatRange(v.rng, 0.1*zone.ZoneMM, 0.9*zone.ZoneMM)
			}
		}
	}

	if v.zone.HasPendingTurnback {
		distIntoZone := zone.ZoneMM - relevantDist
		if distIntoZone >= v.zone.TurnbackPointMM {
			v.movingForward = !v.movingForward
			v.zone.HasPendingTurnback = false
			if zone.EndPause.Enabled {
				v.startZoneEndPause(nowMS, zone.EndPause)
			}
			return factor, true
		}
	}

	return factor, false
}

// zoneEndPauseAtStart reports whether crossing the backward start boundary
// should fire the zone end-pause: the start zone's enable flag (or the end
// zone's, when MirrorOnReturn swaps them on the return leg) plus the pause
// itself must be on.
func (v *VAETController) zoneEndPauseAtStart() bool {
	zone := v.Motion.ZoneEffect
	enabled := zone.EnableStart
	if zone.MirrorOnReturn {
		enabled = zone.EnableEnd
	}
	return enabled && zone.EndPause.Enabled
}

func (v *VAETController) startZoneEndPause(nowMS uint32, cfg CyclePauseConfig) {
	dur := cfg.FixedDurationS
	if cfg.IsRandom {
		dur = FloatRange(v.rng, cfg.MinS, cfg.MaxS)
	}
	v.zone.IsPausing = true
	v.zone.PauseStartMS = nowMS
	v.zone.PauseDurationMS = uint32(dur * 1000)
}

func (v *VAETController) stepForward(nowUS, nowMS uint32, currentStep *int32, sys *SystemConfig) Event {
	if CheckAndCorrectDriftEnd(*currentStep, sys.MaxStep, v.pc.SoftDriftBufferSteps) {
		v.movingForward = false
		v.zone = ZoneEffectState{}
		core.RecordTiming(core.EvtSoftDriftCorrect, 0, nowUS, uint32(*currentStep), 0)
		return EventNone
	}
	if *currentStep+1 > v.targetStep {
		if v.Motion.ZoneEffect.EnableEnd && v.Motion.ZoneEffect.EndPause.Enabled {
			v.startZoneEndPause(nowMS, v.Motion.ZoneEffect.EndPause)
		}
		v.movingForward = false
		v.zone.HasPendingTurnback = false
		return EventNone
	}

	v.motor.SetDirection(true)
	if !v.motor.ReadyForStep(nowUS) {
		return EventNone
	}
	v.motor.Step()
	*currentStep++
	v.lastStepUS = nowUS
	return EventNone
}

func (v *VAETController) stepBackward(nowUS, nowMS uint32, currentStep *int32, sys *SystemConfig) Event {
	if CheckAndCorrectDriftStart(*currentStep, sys.MinStep, v.pc.SoftDriftBufferSteps) {
		v.movingForward = true
		v.zone = ZoneEffectState{}
		core.RecordTiming(core.EvtSoftDriftCorrect, 0, nowUS, uint32(*currentStep), 0)
		return EventNone
	}

	v.motor.SetDirection(false)
	if !v.motor.ReadyForStep(nowUS) {
		return EventNone
	}

	if *currentStep-1 <= v.startStep {
		v.motor.Step()
		*currentStep--
		v.lastStepUS = nowUS
		if v.zoneEndPauseAtStart() {
			v.startZoneEndPause(nowMS, v.Motion.ZoneEffect.EndPause)
		}
		firstReach := !v.hasReachedStart
		v.hasReachedStart = true
		if firstReach {
			v.movingForward = true
			return EventNone
		}
		return v.processCycleCompletion(nowUS, nowMS, sys)
	}

	v.motor.Step()
	*currentStep--
	v.lastStepUS = nowUS
	return EventNone
}

func (v *VAETController) fault(nowUS uint32, currentStep *int32, sys *SystemConfig) Event {
	sys.CurrentState = StateError
	v.motor.Stop()
	core.RecordTiming(core.EvtSafetyFault, 0, nowUS, uint32(*currentStep), 0)
	return EventSafetyFault
}

func (v *VAETController) processCycleCompletion(nowUS, nowMS uint32, sys *SystemConfig) Event {
	if v.pending.Dirty {
		v.Motion = v.pending.MotionConfig
		v.pending.Dirty = false
		v.recomputeEndpoints(sys)
	}
	v.zone.HasRolled = false
	v.zone.HasPendingTurnback = false

	if v.Motion.CyclePause.Enabled {
		dur := v.Motion.CyclePause.FixedDurationS
		if v.Motion.CyclePause.IsRandom {
			dur = FloatRange(v.rng, v.Motion.CyclePause.MinS, v.Motion.CyclePause.MaxS)
		}
		v.cyclePause.IsPausing = true
		v.cyclePause.StartMS = nowMS
		v.cyclePause.CurrentDurationMS = uint32(dur * 1000)
		core.RecordTiming(core.EvtCycleComplete, 0, nowUS, 0, 0)
		return EventNone
	}

	v.movingForward = true
	if v.lastCycleStartUS != 0 {
		v.LastCycleTimeUS = core.ElapsedUS(nowUS, v.lastCycleStartUS)
	}
	v.lastCycleStartUS = nowUS
	core.RecordTiming(core.EvtCycleComplete, 0, nowUS, 0, 0)
	return EventCycleComplete
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
