package motion

import "beltctl/core"

// PursuitController consumes a stream of target positions from the
// command interface and chases them in real time. It has no
// cycle logic: each tick, if the target differs from current_step, it
// steps once toward it at a speed ramped by the position error.
type PursuitController struct {
	motor    *MotorDriver
	contacts *ContactSensors
	pc       PlatformConstants

	State PursuitState
}

// NewPursuitController wires a controller over the shared motor and
// contacts.
func NewPursuitController(motor *MotorDriver, contacts *ContactSensors, pc PlatformConstants) *PursuitController {
	return &PursuitController{motor: motor, contacts: contacts, pc: pc}
}

// Start arms the controller with an initial target and max speed level,
// returning ErrNotCalibrated while total travel is unknown; the caller is
// responsible for setting MovementType = PURSUIT.
func (p *PursuitController) Start(currentStep int32, targetMM, maxSpeedLevel float64, sys *SystemConfig) error {
	if sys.TotalDistanceMM <= 0 {
		return ErrNotCalibrated
	}
	target := clampStep(sys.MinStep+mmToSteps(targetMM, p.pc.StepsPerMM), sys.MinStep, sys.MaxStep)
	p.State = PursuitState{
		TargetStep:    target,
		MaxSpeedLevel: maxSpeedLevel,
		IsMoving:      target != currentStep,
		Direction:     target > currentStep,
	}
	sys.CurrentState = StateRunning
	return nil
}

// Stop halts the motor and drops to READY.
func (p *PursuitController) Stop(sys *SystemConfig) {
	sys.CurrentState = StateReady
	p.motor.Stop()
	p.State.IsMoving = false
}

// SetTarget updates the chase target, clamped to [min_step, max_step].
func (p *PursuitController) SetTarget(targetMM, maxSpeedLevel float64, sys *SystemConfig) {
	p.State.LastTargetStep = p.State.TargetStep
	p.State.TargetStep = clampStep(sys.MinStep+mmToSteps(targetMM, p.pc.StepsPerMM), sys.MinStep, sys.MaxStep)
	p.State.LastMaxSpeedLevel = p.State.MaxSpeedLevel
	p.State.MaxSpeedLevel = maxSpeedLevel
}

// Process advances the controller by at most one step toward State.TargetStep.
func (p *PursuitController) Process(nowUS, nowMS uint32, currentStep *int32, sys *SystemConfig) Event {
	if sys.CurrentState != StateRunning {
		return EventNone
	}

	if p.contacts.CheckHardDriftStart(*currentStep, p.pc) || p.contacts.CheckHardDriftEnd(*currentStep, sys.MaxStep, p.pc) {
		sys.CurrentState = StateError
		p.motor.Stop()
		core.RecordTiming(core.EvtSafetyFault, 0, nowUS, uint32(*currentStep), 0)
		return EventSafetyFault
	}

	if *currentStep == p.State.TargetStep {
		p.State.IsMoving = false
		return EventNone
	}
	p.State.IsMoving = true
	p.State.Direction = p.State.TargetStep > *currentStep

	errMM := absF(stepsToMM(p.State.TargetStep-*currentStep, p.pc.StepsPerMM))
	p.State.StepDelayUS = pursuitStepDelayUS(errMM, p.State.MaxSpeedLevel, p.pc)

	stepToward(p.motor, currentStep, p.State.TargetStep, p.State.StepDelayUS, &p.State.lastStepUS, nowUS, 1)
	if *currentStep == p.State.TargetStep {
		p.State.IsMoving = false
	}
	return EventNone
}

func clampStep(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
