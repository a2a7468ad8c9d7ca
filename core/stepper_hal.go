package core

// StepperBackend is the hardware abstraction the Motor Driver steps
// through to emit STEP pulses and drive the DIR line. Exactly one backend
// is active per target: a plain-GPIO busy-wait implementation everywhere,
// or a PIO-accelerated one on RP2040/RP2350 targets with a spare state
// machine. Either way the Motor Driver blocks for the pulse duration and
// never queues work — there is no background stepping here, unlike the
// dictionary-driven multi-axis Stepper this is descended from.
type StepperBackend interface {
	Init(stepPin, dirPin uint8, invertStep, invertDir bool) error
	Step()
	SetDirection(dir bool)
	Stop()
	GetName() string
}

// StepperBackendInfo describes a backend's performance envelope, surfaced
// for diagnostics only. It never gates a motion decision.
type StepperBackendInfo struct {
	Name          string
	MaxStepRate   uint32 // steps/sec
	MinPulseNs    uint32
	TypicalJitter uint32 // ns
	CPUOverhead   uint8  // percent, approximate, at max step rate
}
