package motion

// OscTelemetry is the oscillation summary carried in a Telemetry snapshot.
type OscTelemetry struct {
	CompletedCycles uint32
	IsRampingIn     bool
	IsRampingOut    bool
	IsPausing       bool
}

// ChaosTelemetry is the chaos summary carried in a Telemetry snapshot.
type ChaosTelemetry struct {
	CurrentPattern   ChaosPattern
	PatternsExecuted uint32
	MinReachedMM     float64
	MaxReachedMM     float64
}

// SequenceTelemetry is the sequencer summary carried in a Telemetry
// snapshot.
type SequenceTelemetry struct {
	IsRunning        bool
	CurrentLineIndex int
	LoopCount        uint32
}

// Telemetry is the full status snapshot produced periodically and on
// demand. DeviceIP is an opaque string set by the platform; the engine
// never interprets it.
type Telemetry struct {
	SystemState            SystemState
	MovementType           MovementType
	ExecutionContext       ExecutionContext
	CurrentPositionMM      float64
	EffectiveMaxDistanceMM float64
	TotalDistanceMM        float64
	Motion                 MotionConfig
	Osc                    OscTelemetry
	Chaos                  ChaosTelemetry
	Sequence               SequenceTelemetry
	TotalDistanceSteps     int64
	VibrationActivity      uint8
	DeviceIP               string
}
