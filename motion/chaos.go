package motion

import (
	"errors"

	"beltctl/core"
)

// ErrNoPatternsEnabled is returned by ChaosController.Start when every
// pattern in the bitmap is disabled.
var ErrNoPatternsEnabled = errors.New("motion: chaos requires at least one enabled pattern")

// patternBaseWeight is the pattern-selection weight table: CALM at 10, the
// other ten split the remaining 90 evenly when all are enabled.
var patternBaseWeight = [numChaosPatterns]float64{
	PatternZigzag:     9,
	PatternSweep:      9,
	PatternPulse:      9,
	PatternDrift:      9,
	PatternBurst:      9,
	PatternWave:       9,
	PatternPendulum:   9,
	PatternSpiral:     9,
	PatternCalm:       10,
	PatternBruteForce: 9,
	PatternLiberator:  9,
}

const (
	chaosPhaseOutward = 0
	chaosPhaseReturn  = 1
	chaosPhasePause   = 2
)

const (
	chaosWaveCyclesOverDuration = 3.0 // full sine cycles across one WAVE pattern duration
	chaosPendulumPeriodS        = 2.0
	chaosSpiralPeriodS          = 3.0
)

// ChaosController schedules the eleven named chaos patterns:
// on Start it seeds the RNG, places the carriage at center, and picks the
// first pattern; Process re-picks on pattern timeout and steps the
// carriage toward whatever sub-target the active pattern's trajectory
// generator computes this tick.
type ChaosController struct {
	motor    *MotorDriver
	contacts *ContactSensors
	pc       PlatformConstants
	rng      Source

	Config      ChaosRuntimeConfig
	baseConfigs [numChaosPatterns]ChaosPatternBaseConfig

	State ChaosExecutionState

	positioning       bool
	ampJump           float64
	calmFreq          float64
	calmPauseRolled   bool
	directionBias     float64
	outwardSign       float64
	patternPauseEndMS uint32

	// PatternsExecuted counts pattern changes since Start, surfaced in
	// telemetry and consumed by the
	// sequencer to count a chaos line's "cycles" against its configured
	// count, since chaos has no native notion of a cycle the way VAET
	// and oscillation do.
	PatternsExecuted uint32
}

// NewChaosController wires a controller over the shared motor, contacts,
// platform constants and RNG.
func NewChaosController(motor *MotorDriver, contacts *ContactSensors, pc PlatformConstants, rng Source) *ChaosController {
	return &ChaosController{motor: motor, contacts: contacts, pc: pc, rng: rng, baseConfigs: defaultPatternBaseConfigs()}
}

func (c *ChaosController) anyPatternEnabled() bool {
	for _, e := range c.Config.EnabledPatterns {
		if e {
			return true
		}
	}
	return false
}

// Start seeds the RNG (explicit seed, or derived from the clock when
// Config.Seed is 0), resets run state, and arms carriage positioning to
// center before the first pattern is picked.
func (c *ChaosController) Start(sys *SystemConfig) error {
	if sys.TotalDistanceMM <= 0 {
		return ErrNotCalibrated
	}
	if !c.anyPatternEnabled() {
		return ErrNoPatternsEnabled
	}
	seed := c.Config.Seed
	if seed == 0 {
		seed = core.GetTime()
	}
	c.rng.Seed(seed)
	c.State = ChaosExecutionState{MinReachedMM: c.Config.CenterMM, MaxReachedMM: c.Config.CenterMM}
	c.positioning = true
	c.PatternsExecuted = 0
	sys.CurrentState = StateRunning
	return nil
}

// Stop halts the motor and drops to READY.
func (c *ChaosController) Stop(sys *SystemConfig) {
	sys.CurrentState = StateReady
	c.motor.Stop()
}

// Process advances the chaos controller by at most one step this tick.
func (c *ChaosController) Process(nowUS, nowMS uint32, currentStep *int32, sys *SystemConfig) Event {
	if sys.CurrentState != StateRunning {
		return EventNone
	}

	if c.contacts.CheckHardDriftStart(*currentStep, c.pc) || c.contacts.CheckHardDriftEnd(*currentStep, sys.MaxStep, c.pc) {
		return c.fault(nowUS, currentStep, sys)
	}

	if c.positioning {
		target := sys.MinStep + mmToSteps(c.Config.CenterMM, c.pc.StepsPerMM)
		delay := chaosStepDelayUS(c.Config.MaxSpeedLevel*0.5, c.pc)
		stepToward(c.motor, currentStep, target, delay, &c.State.lastStepUS, nowUS, 1)
		if *currentStep == target {
			c.positioning = false
			c.State.StartMS = nowMS
			c.pickPattern(nowMS, *currentStep, sys)
			c.PatternsExecuted++
		}
		return EventNone
	}

	if c.Config.TotalDurationS > 0 && core.ElapsedMS(nowMS, c.State.StartMS) >= uint32(c.Config.TotalDurationS*1000) {
		sys.CurrentState = StateReady
		c.motor.Stop()
		return EventCycleComplete
	}

	if c.State.PatternPausing {
		if int32(nowMS-c.patternPauseEndMS) >= 0 {
			c.State.PatternPausing = false
			c.beginOutwardLeg()
		} else {
			return EventNone
		}
	}

	if int32(nowMS-c.State.NextChangeMS) >= 0 {
		c.pickPattern(nowMS, *currentStep, sys)
		c.PatternsExecuted++
		core.RecordTiming(core.EvtCycleComplete, 0, nowUS, c.PatternsExecuted, 0)
		return EventCycleComplete
	}

	targetStep := c.computeTarget(nowMS, *currentStep, sys)
	delay := chaosStepDelayUS(c.State.SpeedLevel, c.pc)
	stepToward(c.motor, currentStep, targetStep, delay, &c.State.lastStepUS, nowUS, 1)

	posMM := stepsToMM(*currentStep-sys.MinStep, c.pc.StepsPerMM)
	if posMM < c.State.MinReachedMM {
		c.State.MinReachedMM = posMM
	}
	if posMM > c.State.MaxReachedMM {
		c.State.MaxReachedMM = posMM
	}
	return EventNone
}

func (c *ChaosController) fault(nowUS uint32, currentStep *int32, sys *SystemConfig) Event {
	sys.CurrentState = StateError
	c.motor.Stop()
	core.RecordTiming(core.EvtSafetyFault, 0, nowUS, uint32(*currentStep), 0)
	return EventSafetyFault
}

// selectPattern draws a new pattern weighted over the enabled set.
func (c *ChaosController) selectPattern() ChaosPattern {
	var total float64
	var weights [numChaosPatterns]float64
	for p := ChaosPattern(0); p < numChaosPatterns; p++ {
		if c.Config.EnabledPatterns[p] {
			weights[p] = patternBaseWeight[p]
			total += weights[p]
		}
	}
	if total <= 0 {
		return PatternCalm
	}
	r := FloatRange(c.rng, 0, total)
	var cum float64
	for p := ChaosPattern(0); p < numChaosPatterns; p++ {
		if weights[p] == 0 {
			continue
		}
		cum += weights[p]
		if r < cum {
			return p
		}
	}
	return PatternCalm
}

// pickPattern draws duration, speed, and amplitude jump for a freshly
// selected pattern and resets the pattern-local phase state.
func (c *ChaosController) pickPattern(nowMS uint32, currentStep int32, sys *SystemConfig) {
	pat := c.selectPattern()
	base := c.baseConfigs[pat]
	crazinessFrac := c.Config.Craziness / 100

	minMS, maxMS := chaosSafeDuration(base, crazinessFrac, 1.0)
	durMS := uint32(FloatRange(c.rng, float64(minMS), float64(maxMS)))

	speedFrac := FloatRange(c.rng, base.SpeedMin, base.SpeedMax)
	speed := clampF(speedFrac*c.Config.MaxSpeedLevel+base.SpeedCrazinessBoost*crazinessFrac*c.Config.MaxSpeedLevel, 0, c.Config.MaxSpeedLevel)

	ampFrac := FloatRange(c.rng, base.AmplitudeJumpMin, base.AmplitudeJumpMax)

	c.State.CurrentPattern = pat
	c.State.PatternStartMS = nowMS
	c.State.NextChangeMS = nowMS + durMS
	c.State.SpeedLevel = speed
	c.State.PatternPhase = 0
	c.State.PatternPausing = false
	c.State.TargetPositionMM = stepsToMM(currentStep-sys.MinStep, c.pc.StepsPerMM)
	c.ampJump = ampFrac * c.Config.AmplitudeMM
	c.calmPauseRolled = false

	switch pat {
	case PatternCalm:
		c.calmFreq = FloatRange(c.rng, 0.2, 1.0)
	case PatternBruteForce, PatternLiberator:
		c.directionBias = 0.9 - 0.3*crazinessFrac
		c.beginOutwardLeg()
	}
}

// beginOutwardLeg (re)starts the outward leg of a BRUTE_FORCE/LIBERATOR
// pattern: a fresh direction draw, a fresh outward speed, and the target
// at the swing extreme.
func (c *ChaosController) beginOutwardLeg() {
	if c.State.CurrentPattern != PatternBruteForce && c.State.CurrentPattern != PatternLiberator {
		return
	}
	c.State.PatternPhase = chaosPhaseOutward
	if Chance(c.rng, c.directionBias*100) {
		c.outwardSign = 1
	} else {
		c.outwardSign = -1
	}
	if c.State.CurrentPattern == PatternBruteForce {
		c.State.SpeedLevel = clampF(FloatRange(c.rng, 0.70, 1.0)*c.Config.MaxSpeedLevel, 0, c.Config.MaxSpeedLevel)
	} else {
		c.State.SpeedLevel = clampF(FloatRange(c.rng, 0.01, 0.10)*c.Config.MaxSpeedLevel, 0, c.Config.MaxSpeedLevel)
	}
	c.State.TargetPositionMM = c.Config.CenterMM + c.ampJump*c.outwardSign
}

// computeTarget evaluates the active pattern's trajectory generator for
// this tick, clamps the result to the pattern's amplitude window and the
// physical travel, and returns the absolute target step.
func (c *ChaosController) computeTarget(nowMS uint32, currentStep int32, sys *SystemConfig) int32 {
	prevTargetStep := sys.MinStep + mmToSteps(c.State.TargetPositionMM, c.pc.StepsPerMM)
	reached := currentStep == prevTargetStep

	patElapsedMS := nowMS - c.State.PatternStartMS
	patDurMS := c.State.NextChangeMS - c.State.PatternStartMS
	if patDurMS == 0 {
		patDurMS = 1
	}
	progress := clampF(float64(patElapsedMS)/float64(patDurMS), 0, 1)
	center := c.Config.CenterMM
	amp := c.ampJump

	switch c.State.CurrentPattern {
	case PatternZigzag:
		if reached {
			c.State.TargetPositionMM = FloatRange(c.rng, center-amp, center+amp)
		}
	case PatternSweep:
		if reached {
			if c.State.PatternPhase == 0 {
				c.State.TargetPositionMM = center + amp
				c.State.PatternPhase = 1
			} else {
				c.State.TargetPositionMM = center - amp
				c.State.PatternPhase = 0
			}
		}
	case PatternPulse:
		if reached {
			if c.State.PatternPhase == 0 {
				c.State.TargetPositionMM = center + amp
				c.State.PatternPhase = 1
			} else {
				c.ampJump = FloatRange(c.rng, amp*0.5, amp)
				c.State.TargetPositionMM = center
				c.State.PatternPhase = 0
			}
		}
	case PatternDrift:
		if reached {
			delta := FloatRange(c.rng, -0.2*amp, 0.2*amp)
			c.State.TargetPositionMM = clampF(c.State.TargetPositionMM+delta, center-amp, center+amp)
		}
	case PatternBurst:
		if reached {
			c.State.TargetPositionMM = FloatRange(c.rng, center-amp, center+amp)
		}
	case PatternWave:
		durationS := float64(patDurMS) / 1000.0
		freq := chaosWaveCyclesOverDuration / durationS
		elapsedS := float64(patElapsedMS) / 1000.0
		c.State.TargetPositionMM = center + amp*waveformValue(WaveformSine, fracPart(elapsedS*freq))
	case PatternPendulum:
		elapsedS := float64(patElapsedMS) / 1000.0
		c.State.TargetPositionMM = center + amp*waveformValue(WaveformTriangle, fracPart(elapsedS/chaosPendulumPeriodS))
	case PatternSpiral:
		curAmp := amp * (0.1 + 0.9*progress)
		elapsedS := float64(patElapsedMS) / 1000.0
		c.State.TargetPositionMM = center + curAmp*waveformValue(WaveformSine, fracPart(elapsedS/chaosSpiralPeriodS))
	case PatternCalm:
		elapsedS := float64(patElapsedMS) / 1000.0
		phi := fracPart(elapsedS * c.calmFreq)
		val := waveformValue(WaveformSine, phi)
		if !c.State.PatternPausing && absF(val) > 0.95 && !c.calmPauseRolled {
			c.calmPauseRolled = true
			if Chance(c.rng, 20) {
				c.State.PatternPausing = true
				c.patternPauseEndMS = nowMS + uint32(FloatRange(c.rng, 500, 2000))
			}
		}
		if phi < 0.05 {
			c.calmPauseRolled = false
		}
		c.State.TargetPositionMM = center + amp*val
	case PatternBruteForce, PatternLiberator:
		if reached {
			switch c.State.PatternPhase {
			case chaosPhaseOutward:
				c.State.PatternPhase = chaosPhaseReturn
				if c.State.CurrentPattern == PatternBruteForce {
					c.State.SpeedLevel = clampF(FloatRange(c.rng, 0.01, 0.10)*c.Config.MaxSpeedLevel, 0, c.Config.MaxSpeedLevel)
				} else {
					c.State.SpeedLevel = clampF(FloatRange(c.rng, 0.70, 1.0)*c.Config.MaxSpeedLevel, 0, c.Config.MaxSpeedLevel)
				}
				c.State.TargetPositionMM = center
			case chaosPhaseReturn:
				c.State.PatternPhase = chaosPhasePause
				c.State.PatternPausing = true
				c.patternPauseEndMS = nowMS + uint32(FloatRange(c.rng, 500, 2000))
			}
		}
	}

	c.State.TargetPositionMM = clampF(c.State.TargetPositionMM, center-amp, center+amp)
	c.State.TargetPositionMM = clampF(c.State.TargetPositionMM, 0, sys.TotalDistanceMM)
	return sys.MinStep + mmToSteps(c.State.TargetPositionMM, c.pc.StepsPerMM)
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
