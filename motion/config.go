// Package motion implements the belt-actuator motion engine: the
// cooperatively-scheduled controllers that advance motor position
// deterministically step-by-step, the shared motion math, the
// calibration/homing state machine, the sequencer, and the safety
// supervision. See Engine for the single entry point the platform's
// motion-core loop drives.
package motion

import "encoding/json"

// SystemState is the global system state. Only StateRunning permits step
// emission (aside from calibration's own moves while StateCalibrating).
// StateError is sticky until an explicit ReturnToStart.
type SystemState uint8

const (
	StateInit SystemState = iota
	StateCalibrating
	StateReady
	StateRunning
	StatePaused
	StateError
)

func (s SystemState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateCalibrating:
		return "CALIBRATING"
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MovementType tags the active movement controller. At most one is active;
// the Supervisor's dispatch selects the corresponding controller.
type MovementType uint8

const (
	MovementNone MovementType = iota
	MovementVAET
	MovementOscillation
	MovementChaos
	MovementPursuit
	MovementCalibration
)

func (m MovementType) String() string {
	switch m {
	case MovementVAET:
		return "VAET"
	case MovementOscillation:
		return "OSCILLATION"
	case MovementChaos:
		return "CHAOS"
	case MovementPursuit:
		return "PURSUIT"
	case MovementCalibration:
		return "CALIBRATION"
	default:
		return "NONE"
	}
}

// ExecutionContext distinguishes a standalone user-driven move from one
// owned by the sequencer. A completion event from any controller reaches
// the sequencer only when context is ContextSequencer.
type ExecutionContext uint8

const (
	ContextStandalone ExecutionContext = iota
	ContextSequencer
)

// PlatformConstants are the platform-defined tuning constants, loaded from
// JSON at boot with DefaultPlatformConstants filling anything the config
// file omits.
type PlatformConstants struct {
	StepsPerMM               float64 `json:"steps_per_mm"`
	MaxSpeedLevel            float64 `json:"max_speed_level"`
	OscMaxSpeedMMS           float64 `json:"osc_max_speed_mms"`
	ChaosMaxStepDelayUS      uint32  `json:"chaos_max_step_delay_us"`
	SpeedCompensationFactor  float64 `json:"speed_compensation_factor"`
	StepExecutionTimeUS      uint32  `json:"step_execution_time_us"`
	HardDriftTestZoneMM      float64 `json:"hard_drift_test_zone_mm"`
	SafetyOffsetSteps        int32   `json:"safety_offset_steps"`
	WasAtStartThresholdSteps int32   `json:"was_at_start_threshold_steps"`
	CalibrationWatchdogSteps int32   `json:"calibration_watchdog_steps"`
	SoftDriftBufferSteps     int32   `json:"soft_drift_buffer_steps"`
}

// DefaultPlatformConstants returns sane defaults for a typical belt
// actuator with a NEMA17 + GT2 pulley drivetrain.
func DefaultPlatformConstants() PlatformConstants {
	return PlatformConstants{
		StepsPerMM:               80.0,
		MaxSpeedLevel:            20.0,
		OscMaxSpeedMMS:           400.0,
		ChaosMaxStepDelayUS:      50000,
		SpeedCompensationFactor:  1.0,
		StepExecutionTimeUS:      3,
		HardDriftTestZoneMM:      20.0,
		SafetyOffsetSteps:        40,
		WasAtStartThresholdSteps: 20,
		CalibrationWatchdogSteps: 400000, // generous bound before first calibration
		SoftDriftBufferSteps:     30,
	}
}

func (p *PlatformConstants) applyDefaults() {
	d := DefaultPlatformConstants()
	if p.StepsPerMM == 0 {
		p.StepsPerMM = d.StepsPerMM
	}
	if p.MaxSpeedLevel == 0 {
		p.MaxSpeedLevel = d.MaxSpeedLevel
	}
	if p.OscMaxSpeedMMS == 0 {
		p.OscMaxSpeedMMS = d.OscMaxSpeedMMS
	}
	if p.ChaosMaxStepDelayUS == 0 {
		p.ChaosMaxStepDelayUS = d.ChaosMaxStepDelayUS
	}
	if p.SpeedCompensationFactor == 0 {
		p.SpeedCompensationFactor = d.SpeedCompensationFactor
	}
	if p.StepExecutionTimeUS == 0 {
		p.StepExecutionTimeUS = d.StepExecutionTimeUS
	}
	if p.HardDriftTestZoneMM == 0 {
		p.HardDriftTestZoneMM = d.HardDriftTestZoneMM
	}
	if p.SafetyOffsetSteps == 0 {
		p.SafetyOffsetSteps = d.SafetyOffsetSteps
	}
	if p.WasAtStartThresholdSteps == 0 {
		p.WasAtStartThresholdSteps = d.WasAtStartThresholdSteps
	}
	if p.CalibrationWatchdogSteps == 0 {
		p.CalibrationWatchdogSteps = d.CalibrationWatchdogSteps
	}
	if p.SoftDriftBufferSteps == 0 {
		p.SoftDriftBufferSteps = d.SoftDriftBufferSteps
	}
}

// SystemConfig is the cross-core, mutex-guarded global config: discovered
// travel bounds and the two state enums that gate every controller's
// dispatch.
type SystemConfig struct {
	TotalDistanceMM        float64          `json:"total_distance_mm"`
	MinStep                int32            `json:"min_step"`
	MaxStep                int32            `json:"max_step"`
	LimitPercent           float64          `json:"limit_percent"`
	EffectiveMaxDistanceMM float64          `json:"-"`
	CurrentState           SystemState      `json:"-"`
	ExecutionContext       ExecutionContext `json:"-"`
}

func (c *SystemConfig) recomputeEffectiveMax() {
	limit := c.LimitPercent
	if limit <= 0 {
		limit = 100
	}
	c.EffectiveMaxDistanceMM = c.TotalDistanceMM * limit / 100
}

// CyclePauseConfig configures an inter-cycle pause, fixed or random.
type CyclePauseConfig struct {
	Enabled        bool    `json:"enabled"`
	IsRandom       bool    `json:"is_random"`
	FixedDurationS float64 `json:"fixed_duration_s"`
	MinS           float64 `json:"min_s"`
	MaxS           float64 `json:"max_s"`
}

// CyclePauseState is the live pause timer for a CyclePauseConfig.
type CyclePauseState struct {
	IsPausing         bool
	StartMS           uint32
	CurrentDurationMS uint32
}

// SpeedEffect is the zone-effect speed modulation kind.
type SpeedEffect uint8

const (
	SpeedEffectNone SpeedEffect = iota
	SpeedEffectDecel
	SpeedEffectAccel
)

// SpeedCurve is the zone-effect progress-to-factor curve.
type SpeedCurve uint8

const (
	CurveLinear SpeedCurve = iota
	CurveSine
	CurveTriangleInv
	CurveSineInv
)

// RandomTurnbackConfig configures the zone-effect random-turnback feature.
type RandomTurnbackConfig struct {
	Enabled       bool    `json:"enabled"`
	PercentChance float64 `json:"percent_chance"`
}

// ZoneEffectConfig configures a position-dependent modulation near one or
// both VAET endpoints: a speed curve, an optional random turnback, and an
// optional end-pause.
type ZoneEffectConfig struct {
	EnableStart    bool                 `json:"enable_start"`
	EnableEnd      bool                 `json:"enable_end"`
	ZoneMM         float64              `json:"zone_mm"`
	MirrorOnReturn bool                 `json:"mirror_on_return"`
	Effect         SpeedEffect          `json:"effect"`
	Curve          SpeedCurve           `json:"curve"`
	Intensity      float64              `json:"intensity"`
	RandomTurnback RandomTurnbackConfig `json:"random_turnback"`
	EndPause       CyclePauseConfig     `json:"end_pause"`
}

// ZoneEffectState is the per-pass latched decisions a zone effect makes:
// whether this pass rolled a turnback, where it lands, and the end-pause
// timer.
type ZoneEffectState struct {
	HasPendingTurnback bool
	HasRolled          bool
	TurnbackPointMM    float64
	IsPausing          bool
	PauseStartMS       uint32
	PauseDurationMS    uint32
}

// MotionConfig is the VAET back-and-forth configuration.
type MotionConfig struct {
	StartPositionMM  float64          `json:"start_position_mm"`
	TargetDistanceMM float64          `json:"target_distance_mm"`
	SpeedForward     float64          `json:"speed_forward"`
	SpeedBackward    float64          `json:"speed_backward"`
	CyclePause       CyclePauseConfig `json:"cycle_pause"`
	ZoneEffect       ZoneEffectConfig `json:"zone_effect"`
}

// PendingMotionConfig shadows MotionConfig: edits received during a
// running cycle land here and are applied atomically only at the next
// backward-to-forward pivot (cycle bottom), never mid-cycle.
type PendingMotionConfig struct {
	MotionConfig
	Dirty bool
}

// Waveform selects the oscillation position generator.
type Waveform uint8

const (
	WaveformSine Waveform = iota
	WaveformTriangle
	WaveformSquare
)

// OscillationConfig configures a continuous waveform position generator.
type OscillationConfig struct {
	CenterMM         float64          `json:"center_mm"`
	AmplitudeMM      float64          `json:"amplitude_mm"`
	Wave             Waveform         `json:"waveform"`
	FrequencyHz      float64          `json:"frequency_hz"`
	RampInMS         uint32           `json:"ramp_in_ms"`
	RampOutMS        uint32           `json:"ramp_out_ms"`
	TargetCycleCount uint32           `json:"target_cycle_count"` // 0 = infinite
	ReturnToCenter   bool             `json:"return_to_center"`
	CyclePause       CyclePauseConfig `json:"cycle_pause"`
}

// linearTransition is a time-bounded linear interpolation from Old to
// Target over DurationMS, used independently for frequency, center, and
// amplitude.
type linearTransition struct {
	IsTransitioning bool
	StartMS         uint32
	DurationMS      uint32
	Old             float64
	Target          float64
}

// valueAt returns the interpolated value at time now, and clears
// IsTransitioning once the window elapses.
func (t *linearTransition) valueAt(now uint32) float64 {
	if !t.IsTransitioning {
		return t.Target
	}
	elapsed := now - t.StartMS
	if t.DurationMS == 0 || elapsed >= t.DurationMS {
		t.IsTransitioning = false
		return t.Target
	}
	frac := float64(elapsed) / float64(t.DurationMS)
	return t.Old + (t.Target-t.Old)*frac
}

func (t *linearTransition) start(now uint32, from, to float64, durationMS uint32) {
	t.IsTransitioning = true
	t.StartMS = now
	t.DurationMS = durationMS
	t.Old = from
	t.Target = to
}

// OscillationState is the oscillation controller's live state.
type OscillationState struct {
	AccumulatedPhase     float64
	LastPhaseUpdateMS    uint32
	LastPhase            float64
	FreqTransition       linearTransition
	CenterTransition     linearTransition
	AmplitudeTransition  linearTransition
	IsRampingIn          bool
	IsRampingOut         bool
	IsReturning          bool
	IsInitialPositioning bool
	RampStartMS          uint32
	CompletedCycles      uint32
	Pause                CyclePauseState
	lastCapWarnMS        uint32
}

// ChaosPattern is one of the eleven named chaos trajectory generators.
type ChaosPattern uint8

const (
	PatternZigzag ChaosPattern = iota
	PatternSweep
	PatternPulse
	PatternDrift
	PatternBurst
	PatternWave
	PatternPendulum
	PatternSpiral
	PatternCalm
	PatternBruteForce
	PatternLiberator
	numChaosPatterns
)

func (p ChaosPattern) String() string {
	names := [numChaosPatterns]string{
		"ZIGZAG", "SWEEP", "PULSE", "DRIFT", "BURST", "WAVE",
		"PENDULUM", "SPIRAL", "CALM", "BRUTE_FORCE", "LIBERATOR",
	}
	if int(p) < len(names) {
		return names[p]
	}
	return "UNKNOWN"
}

// ChaosPatternBaseConfig is the shared base config every pattern draws its
// duration, speed, and amplitude jump from.
type ChaosPatternBaseConfig struct {
	SpeedMin                     float64
	SpeedMax                     float64
	SpeedCrazinessBoost          float64
	DurationMinMS                uint32
	DurationMaxMS                uint32
	DurationCrazinessReductionMS uint32
	AmplitudeJumpMin             float64
	AmplitudeJumpMax             float64
}

// defaultPatternBaseConfigs returns the built-in per-pattern base configs.
// Fixed at compile time per the design note on avoiding dynamic allocation
// on the motion path.
func defaultPatternBaseConfigs() [numChaosPatterns]ChaosPatternBaseConfig {
	return [numChaosPatterns]ChaosPatternBaseConfig{
		PatternZigzag:     {0.5, 1.0, 0.3, 200, 800, 300, 0.3, 0.9},
		PatternSweep:      {0.4, 0.9, 0.2, 800, 2500, 600, 0.6, 1.0},
		PatternPulse:      {0.6, 1.0, 0.3, 300, 1200, 400, 0.4, 1.0},
		PatternDrift:      {0.1, 0.3, 0.1, 400, 1500, 300, 0.05, 0.25},
		PatternBurst:      {0.8, 1.0, 0.4, 150, 600, 250, 0.7, 1.0},
		PatternWave:       {0.3, 0.7, 0.2, 1500, 4000, 1000, 0.5, 1.0},
		PatternPendulum:   {0.4, 0.8, 0.2, 1000, 3000, 800, 0.6, 0.9},
		PatternSpiral:     {0.3, 0.7, 0.2, 1200, 3500, 900, 0.4, 1.0},
		PatternCalm:       {0.05, 0.2, 0.05, 2000, 5000, 1000, 0.1, 0.4},
		PatternBruteForce: {0.7, 1.0, 0.3, 600, 2000, 500, 0.6, 1.0},
		PatternLiberator:  {0.7, 1.0, 0.3, 600, 2000, 500, 0.6, 1.0},
	}
}

// ChaosRuntimeConfig configures one chaos run.
type ChaosRuntimeConfig struct {
	CenterMM        float64                `json:"center_mm"`
	AmplitudeMM     float64                `json:"amplitude_mm"`
	MaxSpeedLevel   float64                `json:"max_speed_level"`
	TotalDurationS  float64                `json:"total_duration_s"` // 0 = infinite
	Seed            uint32                 `json:"seed"`             // 0 = derive from clock
	Craziness       float64                `json:"craziness"`        // 0-100
	EnabledPatterns [numChaosPatterns]bool `json:"enabled_patterns"`
}

// ChaosExecutionState is the chaos pattern scheduler's live state.
type ChaosExecutionState struct {
	CurrentPattern      ChaosPattern
	PatternStartMS      uint32
	NextChangeMS        uint32
	TargetPositionMM    float64
	SpeedLevel          float64
	Direction           bool // true = toward +mm
	PatternPhase        int
	PatternPausing      bool
	PatternPauseUntilMS uint32
	MinReachedMM        float64
	MaxReachedMM        float64
	StartMS             uint32
	lastStepUS          uint32
}

// PursuitState is the real-time target-chasing controller's live state.
type PursuitState struct {
	TargetStep        int32
	LastTargetStep    int32
	MaxSpeedLevel     float64
	LastMaxSpeedLevel float64
	StepDelayUS       uint32
	IsMoving          bool
	Direction         bool
	lastStepUS        uint32
}

// SequenceLine is one line of a sequencer program: its own movement type
// and the union of mode-specific parameters.
type SequenceLine struct {
	ID           uint32             `json:"id"`
	Enabled      bool               `json:"enabled"`
	Movement     MovementType       `json:"movement"`
	VAET         MotionConfig       `json:"vaet"`
	Osc          OscillationConfig  `json:"osc"`
	Chaos        ChaosRuntimeConfig `json:"chaos"`
	CycleCount   uint32             `json:"cycle_count"`
	PauseAfterMS uint32             `json:"pause_after_ms"`
}

// MaxSequenceLines bounds the sequence program's fixed-size storage (design
// note: pre-size the sequence program at compile time; no dynamic
// allocation on the motion path).
const MaxSequenceLines = 64

// SequenceExecutionState is the sequencer's live state.
type SequenceExecutionState struct {
	IsRunning          bool
	IsLoopMode         bool
	CurrentLineIndex   int
	CurrentCycleInLine uint32
	IsWaitingPause     bool
	PauseEndMS         uint32
	LoopCount          uint32
}

// EngineConfig is the complete JSON-loadable configuration, mirroring
// standalone/config/config.go's LoadConfig + applyDefaults pattern: unknown
// fields are ignored by encoding/json, and every zero-valued platform
// constant is filled in by applyDefaults after unmarshal.
type EngineConfig struct {
	Platform PlatformConstants  `json:"platform"`
	System   SystemConfig       `json:"system"`
	VAET     MotionConfig       `json:"vaet"`
	Osc      OscillationConfig  `json:"oscillation"`
	Chaos    ChaosRuntimeConfig `json:"chaos"`
}

// DefaultEngineConfig returns a complete, safe-default configuration
// suitable for an uncalibrated boot.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Platform: DefaultPlatformConstants(),
		System: SystemConfig{
			LimitPercent: 95,
		},
		VAET: MotionConfig{
			TargetDistanceMM: 100,
			SpeedForward:     5,
			SpeedBackward:    5,
		},
	}
}

// LoadConfig parses a JSON configuration payload over the safe defaults,
// the way standalone/config/config.go's LoadConfig did for MachineConfig:
// start from DefaultEngineConfig, unmarshal over it (unknown/missing
// fields keep their default), then fill any still-zero platform constant.
func LoadConfig(data []byte) (*EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.Platform.applyDefaults()
	if cfg.System.LimitPercent == 0 {
		cfg.System.LimitPercent = 95
	}
	cfg.System.recomputeEffectiveMax()
	return &cfg, nil
}
