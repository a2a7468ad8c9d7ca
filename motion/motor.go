package motion

import "beltctl/core"

// MotorDriver owns the three motor GPIOs: STEP pulse, DIR level, and the
// active-low ENABLE latch. It is a thin capability with no
// background work — every call blocks only for the pulse or hold duration
// it names, and the caller (a movement controller) decides when to call
// it.
type MotorDriver struct {
	backend   core.StepperBackend
	gpio      core.GPIODriver
	enablePin core.GPIOPin

	enabled     bool
	forward     bool
	initialized bool

	dirHoldUS        uint32
	lastDirChangeUS  uint32
	dirChangePending bool
}

// NewMotorDriver constructs a driver over a hardware backend (GPIO or
// PIO-accelerated) for STEP/DIR and a GPIODriver for the ENABLE line.
// dirHoldUS is the direction-change hold time the datasheet requires
// before the next step is permitted.
func NewMotorDriver(backend core.StepperBackend, gpio core.GPIODriver, enablePin core.GPIOPin, dirHoldUS uint32) *MotorDriver {
	return &MotorDriver{
		backend:   backend,
		gpio:      gpio,
		enablePin: enablePin,
		dirHoldUS: dirHoldUS,
		forward:   true,
	}
}

// Init configures pins as outputs, disables the motor, sets direction
// forward, and idles the pulse line low.
func (m *MotorDriver) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	if err := m.backend.Init(stepPin, dirPin, invertStep, invertDir); err != nil {
		return err
	}
	if err := m.gpio.ConfigureOutput(m.enablePin); err != nil {
		return err
	}
	m.Disable()
	m.forward = true
	m.backend.SetDirection(false)
	m.initialized = true
	return nil
}

// Step drives the pulse line for the backend's minimum pulse width, then
// returns it low. Blocks for the pulse duration.
func (m *MotorDriver) Step() {
	m.backend.Step()
	core.RecordTiming(core.EvtStepEmit, 0, core.GetTime(), 0, 0)
}

// SetDirection is a no-op if direction is unchanged; otherwise it sets DIR
// and starts the hold-time window — the caller must consult ReadyForStep
// before the next Step.
func (m *MotorDriver) SetDirection(forward bool) {
	if forward == m.forward {
		return
	}
	m.forward = forward
	m.backend.SetDirection(!forward)
	m.lastDirChangeUS = core.GetTime()
	m.dirChangePending = true
}

// ReadyForStep reports whether the direction-change hold time has elapsed
// since the last SetDirection call.
func (m *MotorDriver) ReadyForStep(nowUS uint32) bool {
	if !m.dirChangePending {
		return true
	}
	return core.ElapsedUS(nowUS, m.lastDirChangeUS) >= m.dirHoldUS
}

// Enable latches the active-low enable line on.
func (m *MotorDriver) Enable() {
	_ = m.gpio.SetPin(m.enablePin, false)
	m.enabled = true
}

// Disable latches the active-low enable line off.
func (m *MotorDriver) Disable() {
	_ = m.gpio.SetPin(m.enablePin, true)
	m.enabled = false
}

// IsEnabled reports the latched enable state.
func (m *MotorDriver) IsEnabled() bool {
	return m.enabled
}

// IsForward reports the current direction.
func (m *MotorDriver) IsForward() bool {
	return m.forward
}

// Stop asks the backend to halt immediately, leaving the pulse line low.
func (m *MotorDriver) Stop() {
	m.backend.Stop()
}
