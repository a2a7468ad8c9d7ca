package motion

import "beltctl/core"

// CalibrationState is the homing state machine's current phase.
type CalibrationState uint8

const (
	CalIdle CalibrationState = iota
	CalMovingToStart
	CalLeavingStart
	CalMovingToEnd
	CalLeavingEnd
	CalFinished
	CalFailed
)

// CalibrationManager discovers total travel by driving the axis to the
// start contact, then to the end contact, measuring step counts between
// them. On entry the Supervisor disables all other controllers and sets
// SystemState = CALIBRATING; the manager itself only ever touches the
// motor, the contacts, and the shared step counter it is given.
type CalibrationManager struct {
	motor    *MotorDriver
	contacts *ContactSensors
	pc       PlatformConstants

	state CalibrationState

	watchdogSteps int32
	lastStepUS    uint32
	stepDelayUS   uint32
	decontactUS   uint32

	decontacted bool
	offsetSteps int32
	returnOnly  bool

	TotalDistanceMM float64
	StartStep       int32
	EndStep         int32
	Failed          bool
}

// NewCalibrationManager builds a manager driving motor and reading
// contacts at an approach speed below MAX_SPEED_LEVEL, with a slower
// decontact speed.
func NewCalibrationManager(motor *MotorDriver, contacts *ContactSensors, pc PlatformConstants) *CalibrationManager {
	return &CalibrationManager{
		motor:       motor,
		contacts:    contacts,
		pc:          pc,
		stepDelayUS: chaosStepDelayUS(pc.MaxSpeedLevel*0.3, pc),
		decontactUS: chaosStepDelayUS(pc.MaxSpeedLevel*0.15, pc),
	}
}

// Start begins a full homing run: approach the start contact, discover
// total travel against the end contact, and publish it.
func (c *CalibrationManager) Start() {
	c.state = CalMovingToStart
	c.returnOnly = false
	c.Failed = false
	c.resetLegState()
}

// StartReturnToStart begins a homing run that stops once position 0 is
// re-established, without rediscovering total travel — used by
// return_to_start() so position 0 is bit-identical to calibration zero
// regardless of accumulated drift.
func (c *CalibrationManager) StartReturnToStart() {
	c.state = CalMovingToStart
	c.returnOnly = true
	c.Failed = false
	c.resetLegState()
}

// Active reports whether a homing run is in progress.
func (c *CalibrationManager) Active() bool {
	return c.state != CalIdle && c.state != CalFinished && c.state != CalFailed
}

func (c *CalibrationManager) resetLegState() {
	c.watchdogSteps = 0
	c.lastStepUS = 0
	c.decontacted = false
	c.offsetSteps = 0
}

func (c *CalibrationManager) dueForStep(nowUS, delay uint32) bool {
	if c.lastStepUS == 0 {
		return true
	}
	return core.ElapsedUS(nowUS, c.lastStepUS) >= delay
}

// Process advances the homing state machine by at most one step this
// tick, mutating the shared position counter directly as the axis
// approaches and leaves each contact.
func (c *CalibrationManager) Process(nowUS uint32, currentStep *int32) Event {
	switch c.state {
	case CalMovingToStart:
		return c.stepMovingToStart(nowUS, currentStep)
	case CalLeavingStart:
		return c.stepLeavingStart(nowUS, currentStep)
	case CalMovingToEnd:
		return c.stepMovingToEnd(nowUS, currentStep)
	case CalLeavingEnd:
		return c.stepLeavingEnd(nowUS, currentStep)
	default:
		return EventNone
	}
}

func (c *CalibrationManager) watchdogTrip(nowUS uint32) Event {
	c.state = CalFailed
	c.Failed = true
	core.RecordTiming(core.EvtSafetyFault, 0, nowUS, uint32(c.watchdogSteps), 0)
	core.TryShutdown("calibration watchdog: contact not found within CalibrationWatchdogSteps")
	return EventCalibrationFailed
}

func (c *CalibrationManager) stepMovingToStart(nowUS uint32, currentStep *int32) Event {
	if c.contacts.IsStartActive(3, 20) {
		c.state = CalLeavingStart
		c.resetLegState()
		return EventNone
	}
	if !c.dueForStep(nowUS, c.stepDelayUS) {
		return EventNone
	}
	c.motor.SetDirection(false)
	if !c.motor.ReadyForStep(nowUS) {
		return EventNone
	}
	c.motor.Step()
	*currentStep--
	c.lastStepUS = nowUS
	c.watchdogSteps++
	if c.watchdogSteps > c.pc.CalibrationWatchdogSteps {
		return c.watchdogTrip(nowUS)
	}
	return EventNone
}

func (c *CalibrationManager) stepLeavingStart(nowUS uint32, currentStep *int32) Event {
	if !c.dueForStep(nowUS, c.decontactUS) {
		return EventNone
	}
	c.motor.SetDirection(true)
	if !c.motor.ReadyForStep(nowUS) {
		return EventNone
	}

	if !c.decontacted {
		if !c.contacts.IsStartActive(3, 20) {
			c.decontacted = true
			c.offsetSteps = 0
		} else {
			c.motor.Step()
			*currentStep++
			c.lastStepUS = nowUS
			c.watchdogSteps++
			if c.watchdogSteps > c.pc.CalibrationWatchdogSteps {
				return c.watchdogTrip(nowUS)
			}
			return EventNone
		}
	}

	if c.offsetSteps < c.pc.SafetyOffsetSteps {
		c.motor.Step()
		*currentStep++
		c.lastStepUS = nowUS
		c.offsetSteps++
		return EventNone
	}

	*currentStep = 0
	c.StartStep = 0
	c.resetLegState()
	if c.returnOnly {
		c.state = CalFinished
		return EventCalibrationDone
	}
	c.state = CalMovingToEnd
	return EventNone
}

func (c *CalibrationManager) stepMovingToEnd(nowUS uint32, currentStep *int32) Event {
	if c.contacts.IsEndActive(5, 20) {
		c.state = CalLeavingEnd
		c.resetLegState()
		return EventNone
	}
	if !c.dueForStep(nowUS, c.stepDelayUS) {
		return EventNone
	}
	c.motor.SetDirection(true)
	if !c.motor.ReadyForStep(nowUS) {
		return EventNone
	}
	c.motor.Step()
	*currentStep++
	c.lastStepUS = nowUS
	c.watchdogSteps++
	if c.watchdogSteps > c.pc.CalibrationWatchdogSteps {
		return c.watchdogTrip(nowUS)
	}
	return EventNone
}

func (c *CalibrationManager) stepLeavingEnd(nowUS uint32, currentStep *int32) Event {
	if !c.dueForStep(nowUS, c.decontactUS) {
		return EventNone
	}
	c.motor.SetDirection(false)
	if !c.motor.ReadyForStep(nowUS) {
		return EventNone
	}

	if !c.decontacted {
		if !c.contacts.IsEndActive(5, 20) {
			c.decontacted = true
			c.offsetSteps = 0
		} else {
			c.motor.Step()
			*currentStep--
			c.lastStepUS = nowUS
			c.watchdogSteps++
			if c.watchdogSteps > c.pc.CalibrationWatchdogSteps {
				return c.watchdogTrip(nowUS)
			}
			return EventNone
		}
	}

	if c.offsetSteps < c.pc.SafetyOffsetSteps {
		c.motor.Step()
		*currentStep--
		c.lastStepUS = nowUS
		c.offsetSteps++
		return EventNone
	}

	c.EndStep = *currentStep
	c.TotalDistanceMM = stepsToMM(c.EndStep, c.pc.StepsPerMM)
	c.state = CalFinished
	core.RecordTiming(core.EvtCalibrationDone, 0, nowUS, uint32(c.EndStep), 0)
	return EventCalibrationDone
}
