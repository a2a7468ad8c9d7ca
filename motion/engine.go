package motion

import (
	"encoding/json"

	"beltctl/core"
)

// Engine is the Supervisor/global-state aggregate: it owns the motor,
// contacts, calibration manager, the four movement controllers,
// the sequencer, stats tracking, and the shared SystemConfig. Process is
// the single entry point the motion core's tick loop drives; Dispatch is
// the single entry point the service core's command decoder drives. Every
// subsystem is owned by value or by unshared pointer here — no package-level
// singletons — so the ownership of the motor, the contacts, and the shared
// step counter is explicit in the wiring.
type Engine struct {
	Config SystemConfig
	pc     PlatformConstants

	motor    *MotorDriver
	contacts *ContactSensors
	cal      *CalibrationManager

	vaet    *VAETController
	osc     *OscillationController
	chaos   *ChaosController
	pursuit *PursuitController
	seq     *Sequencer

	stats *StatsTracking
	store PersistenceStore

	timeSync func(epochMS uint64)
	vib      VibrationSource

	deferredTag     CommandTag
	deferredPayload any
	hasDeferred     bool

	configLock core.StateLock

	currentStep int32
	activeMove  MovementType
	deviceIP    string

	registry *CommandRegistry
}

// configLockTimeoutUS bounds how long the motion core waits to acquire
// configLock before giving up and logging, rather than blocking a tick.
const configLockTimeoutUS = 2000

// NewEngine wires every subsystem over the given platform capabilities.
// store may be nil (no persistence backend wired yet); rng seeds the VAET
// zone-effect draws, the oscillation cycle-pause draw, and chaos.
func NewEngine(motor *MotorDriver, contacts *ContactSensors, pc PlatformConstants, rng Source, configLock core.StateLock, statsLock core.StateLock, store PersistenceStore) *Engine {
	e := &Engine{
		pc:         pc,
		motor:      motor,
		contacts:   contacts,
		cal:        NewCalibrationManager(motor, contacts, pc),
		vaet:       NewVAETController(motor, contacts, pc, rng),
		osc:        NewOscillationController(motor, contacts, pc, rng),
		chaos:      NewChaosController(motor, contacts, pc, rng),
		pursuit:    NewPursuitController(motor, contacts, pc),
		stats:      NewStatsTracking(statsLock),
		store:      store,
		configLock: configLock,
		registry:   NewCommandRegistry(),
	}
	e.seq = NewSequencer(e.vaet, e.osc, e.chaos)
	e.Config.LimitPercent = 95
	e.registerCommands()
	return e
}

// SetDeviceIP records the opaque device-IP string surfaced in telemetry.
func (e *Engine) SetDeviceIP(ip string) {
	e.deviceIP = ip
}

// SetTimeSyncHandler installs the platform hook a SYNC_TIME command is
// forwarded to. The engine itself has no use for wall-clock time; the
// platform's daily-statistics rollover does.
func (e *Engine) SetTimeSyncHandler(fn func(epochMS uint64)) {
	e.timeSync = fn
}

// VibrationSource is an optional diagnostics tap (an accelerometer monitor
// such as diagnostics.VibrationMonitor) sampled while a telemetry snapshot
// is assembled. It never gates a motion or safety decision.
type VibrationSource interface {
	Sample()
	Activity() uint8
	ResetPeak()
}

// SetVibrationSource installs the diagnostics tap surfaced as
// Telemetry.VibrationActivity. May be nil (no sensor fitted).
func (e *Engine) SetVibrationSource(v VibrationSource) {
	e.vib = v
}

// CurrentStep returns the live step position (motion core only; reading it
// from the service core without configLock is a benign race on a single
// aligned int32 read; 32-bit aligned writes are atomic on the supported
// targets).
func (e *Engine) CurrentStep() int32 {
	return e.currentStep
}

// withConfigLock runs fn with SystemConfig's mutex held, logging and
// skipping on timeout rather than blocking a tick.
func (e *Engine) withConfigLock(fn func()) {
	if !e.configLock.TryLock(configLockTimeoutUS) {
		Logf("engine: config lock timeout, command dropped")
		core.RecordTiming(core.EvtResourceConflict, 0, core.GetTime(), 0, 0)
		return
	}
	defer e.configLock.Unlock()
	fn()
}

// Process is the single per-tick entry point the motion core's loop calls.
// nowUS and nowMS are the platform's two free-running clocks. It
// dispatches to whichever controller owns the active movement
// (or the calibration manager, while CALIBRATING), folds the resulting
// event into sequencer advancement and stats tracking, and always records
// the step delta regardless of which path moved the carriage.
func (e *Engine) Process(nowUS, nowMS uint32) Event {
	if core.IsShutdown() {
		if e.Config.CurrentState != StateError {
			e.Config.CurrentState = StateError
			e.activeMove = MovementNone
			e.persistStatsOnHalt()
		}
		return EventSafetyFault
	}

	beforeState := e.Config.CurrentState

	var evt Event
	switch {
	case e.Config.CurrentState == StateCalibrating:
		evt = e.cal.Process(nowUS, &e.currentStep)
		if evt == EventCalibrationDone {
			e.activeMove = MovementNone
			e.onCalibrationDone()
		} else if evt == EventCalibrationFailed {
			e.Config.CurrentState = StateError
			e.activeMove = MovementNone
			if e.hasDeferred {
				e.hasDeferred = false
				e.deferredPayload = nil
				Logf("engine: start refused, calibration failed")
			}
		}
	case e.activeMove == MovementVAET:
		evt = e.vaet.Process(nowUS, nowMS, &e.currentStep, &e.Config)
	case e.activeMove == MovementOscillation:
		evt = e.osc.Process(nowUS, nowMS, &e.currentStep, &e.Config)
	case e.activeMove == MovementChaos:
		evt = e.chaos.Process(nowUS, nowMS, &e.currentStep, &e.Config)
	case e.activeMove == MovementPursuit:
		evt = e.pursuit.Process(nowUS, nowMS, &e.currentStep, &e.Config)
	}

	e.stats.TrackDelta(e.currentStep)
	if beforeState != e.Config.CurrentState {
		core.RecordTiming(core.EvtStateTransition, 0, nowUS, uint32(e.Config.CurrentState), uint32(beforeState))
	}

	if evt == EventSafetyFault {
		e.activeMove = MovementNone
		if e.Config.ExecutionContext == ContextSequencer {
			e.seq.Stop(&e.Config, &e.activeMove)
		}
		e.persistStatsOnHalt()
		return evt
	}

	if evt == EventCycleComplete && e.Config.ExecutionContext == ContextSequencer {
		e.persistStatsOnHalt()
		if e.seq.OnControllerComplete(nowMS, e.currentStep, &e.Config, &e.activeMove) {
			core.RecordTiming(core.EvtSequenceAdvance, 0, nowUS, uint32(e.seq.State.CurrentLineIndex), 0)
			return EventSequenceLineDone
		}
		return EventNone
	}

	e.seq.Process(nowMS, e.currentStep, &e.Config, &e.activeMove)

	if evt == EventCycleComplete {
		e.persistStatsOnHalt()
	}
	return evt
}

func (e *Engine) onCalibrationDone() {
	e.withConfigLock(func() {
		e.Config.TotalDistanceMM = e.cal.TotalDistanceMM
		e.Config.MinStep = e.cal.StartStep
		e.Config.MaxStep = e.cal.EndStep
		e.Config.recomputeEffectiveMax()
		e.Config.CurrentState = StateReady
	})
	if e.hasDeferred {
		tag, payload := e.deferredTag, e.deferredPayload
		e.hasDeferred = false
		e.deferredPayload = nil
		if err := e.registry.Dispatch(tag, payload); err != nil {
			Logf("engine: deferred start failed after calibration")
		}
	}
}

// ensureCalibrated reports whether total travel is known. When it is not,
// it auto-triggers a homing run and stashes the start command for replay
// once calibration finishes; a failed calibration drops the stashed
// command instead.
func (e *Engine) ensureCalibrated(tag CommandTag, payload any) bool {
	if e.Config.TotalDistanceMM > 0 {
		return true
	}
	e.Calibrate()
	e.deferredTag = tag
	e.deferredPayload = payload
	e.hasDeferred = true
	return false
}

// persistStatsOnHalt flushes the stats increment to the store, whenever one
// is wired, at every halt-like transition: stop, entering pause, a safety
// fault, and cycle completion.
func (e *Engine) persistStatsOnHalt() {
	if e.store == nil {
		return
	}
	delta := e.stats.MarkSaved()
	if delta == 0 {
		return
	}
	// The platform's append-only daily file format is outside this
	// package's scope: hand back the increment since the last save and let
	// the store fold it into today's record.
	data, err := json.Marshal(StatsRecord{TotalDistanceSteps: delta})
	if err != nil {
		return
	}
	if err := e.store.SaveStats(data); err != nil {
		Logf("stats: save failed, increment dropped")
	}
}

// TogglePause flips RUNNING/PAUSED. Entering PAUSE persists stats;
// leaving PAUSE during an active oscillation freezes its phase
// clock reference so the elapsed pause doesn't appear as a jerk.
func (e *Engine) TogglePause(nowMS uint32) {
	switch e.Config.CurrentState {
	case StateRunning:
		e.Config.CurrentState = StatePaused
		e.persistStatsOnHalt()
	case StatePaused:
		e.Config.CurrentState = StateRunning
		if e.activeMove == MovementOscillation {
			e.osc.ResumeFromPause(nowMS)
		}
	}
}

// Stop drops to READY, persists stats, and clears whichever controller is
// active, including any sequence the user's stop overrides.
func (e *Engine) Stop() {
	switch e.activeMove {
	case MovementVAET:
		e.vaet.Stop(&e.Config)
	case MovementOscillation:
		e.osc.Stop(&e.Config)
	case MovementChaos:
		e.chaos.Stop(&e.Config)
	case MovementPursuit:
		e.pursuit.Stop(&e.Config)
	}
	if e.Config.ExecutionContext == ContextSequencer {
		e.seq.Stop(&e.Config, &e.activeMove)
	}
	e.activeMove = MovementNone
	e.Config.CurrentState = StateReady
	e.hasDeferred = false
	e.deferredPayload = nil
	e.persistStatsOnHalt()
}

// Calibrate starts a full homing run. Any
// active controller and sequence is stopped first, and a latched watchdog
// shutdown is cleared so the homing attempt can actually drive the motor.
func (e *Engine) Calibrate() {
	e.Stop()
	core.ResetShutdown()
	e.Config.CurrentState = StateCalibrating
	e.activeMove = MovementCalibration
	e.cal.Start()
}

// ReturnToStart re-homes position 0 without rediscovering total travel —
// the only recovery path out of ERROR besides a full recalibration.
func (e *Engine) ReturnToStart() {
	e.Stop()
	core.ResetShutdown()
	e.Config.CurrentState = StateCalibrating
	e.activeMove = MovementCalibration
	e.cal.StartReturnToStart()
}

// stopSequenceForStandaloneStart enforces that any standalone start stops
// the sequencer: a user-issued start is a command the sequencer must yield
// to.
func (e *Engine) stopSequenceForStandaloneStart() {
	if e.Config.ExecutionContext == ContextSequencer {
		e.seq.Stop(&e.Config, &e.activeMove)
	}
}

// Snapshot assembles a Telemetry value under the config lock.
func (e *Engine) Snapshot() Telemetry {
	t := Telemetry{DeviceIP: e.deviceIP}
	if e.vib != nil {
		e.vib.Sample()
		t.VibrationActivity = e.vib.Activity()
		e.vib.ResetPeak()
	}
	e.withConfigLock(func() {
		t.SystemState = e.Config.CurrentState
		t.MovementType = e.activeMove
		t.ExecutionContext = e.Config.ExecutionContext
		t.CurrentPositionMM = stepsToMM(e.currentStep-e.Config.MinStep, e.pc.StepsPerMM)
		t.EffectiveMaxDistanceMM = e.Config.EffectiveMaxDistanceMM
		t.TotalDistanceMM = e.Config.TotalDistanceMM
		t.Motion = e.vaet.Motion
		t.Osc = OscTelemetry{
			CompletedCycles: e.osc.State.CompletedCycles,
			IsRampingIn:     e.osc.State.IsRampingIn,
			IsRampingOut:    e.osc.State.IsRampingOut,
			IsPausing:       e.osc.State.Pause.IsPausing,
		}
		t.Chaos = ChaosTelemetry{
			CurrentPattern:   e.chaos.State.CurrentPattern,
			PatternsExecuted: e.chaos.PatternsExecuted,
			MinReachedMM:     e.chaos.State.MinReachedMM,
			MaxReachedMM:     e.chaos.State.MaxReachedMM,
		}
		t.Sequence = SequenceTelemetry{
			IsRunning:        e.seq.State.IsRunning,
			CurrentLineIndex: e.seq.State.CurrentLineIndex,
			LoopCount:        e.seq.State.LoopCount,
		}
	})
	t.TotalDistanceSteps = e.stats.Snapshot()
	return t
}

// ExportSequence returns a copy of the stored sequence program. It returns
// data rather than mutating state, so it bypasses
// the CommandRegistry's error-only handler shape and is called directly.
func (e *Engine) ExportSequence() []SequenceLine {
	return e.seq.ExportLines()
}

// Dispatch runs the command registered for tag against payload and
// returns a fresh telemetry snapshot alongside any error.
func (e *Engine) Dispatch(tag CommandTag, payload any) (Telemetry, error) {
	err := e.registry.Dispatch(tag, payload)
	return e.Snapshot(), err
}

func (e *Engine) registerCommands() {
	e.registry.Register(CmdGetStatus, func(any) error { return nil })

	e.registry.Register(CmdSyncTime, func(p any) error {
		pl, ok := p.(SyncTimePayload)
		if !ok {
			return ErrBadPayload
		}
		if e.timeSync != nil {
			e.timeSync(pl.EpochMS)
		}
		return nil
	})

	e.registry.Register(CmdSetDistance, func(p any) error {
		pl, ok := p.(SetDistancePayload)
		if !ok {
			return ErrBadPayload
		}
		e.vaet.SetDistance(pl.DistanceMM, &e.Config, e.Config.CurrentState == StateRunning)
		return nil
	})
	e.registry.Register(CmdSetStartPosition, func(p any) error {
		pl, ok := p.(SetStartPositionPayload)
		if !ok {
			return ErrBadPayload
		}
		e.vaet.SetStartPosition(pl.PositionMM, &e.Config, e.Config.CurrentState == StateRunning)
		return nil
	})
	e.registry.Register(CmdSetSpeedForward, func(p any) error {
		pl, ok := p.(SetSpeedPayload)
		if !ok {
			return ErrBadPayload
		}
		e.vaet.SetSpeedForward(pl.Level, e.Config.CurrentState == StateRunning)
		return nil
	})
	e.registry.Register(CmdSetSpeedBackward, func(p any) error {
		pl, ok := p.(SetSpeedPayload)
		if !ok {
			return ErrBadPayload
		}
		e.vaet.SetSpeedBackward(pl.Level, e.Config.CurrentState == StateRunning)
		return nil
	})
	e.registry.Register(CmdSetCyclePause, func(p any) error {
		pl, ok := p.(SetCyclePausePayload)
		if !ok {
			return ErrBadPayload
		}
		if pl.Mode == MovementOscillation {
			e.osc.Config.CyclePause = pl.Config
			return nil
		}
		e.vaet.SetCyclePause(pl.Config, e.Config.CurrentState == StateRunning)
		return nil
	})
	e.registry.Register(CmdSetZoneEffect, func(p any) error {
		pl, ok := p.(SetZoneEffectPayload)
		if !ok {
			return ErrBadPayload
		}
		e.vaet.SetZoneEffect(pl.Config, e.Config.CurrentState == StateRunning)
		return nil
	})
	e.registry.Register(CmdStart, func(p any) error {
		pl, ok := p.(StartPayload)
		if !ok {
			return ErrBadPayload
		}
		if !e.ensureCalibrated(CmdStart, pl) {
			return nil
		}
		e.stopSequenceForStandaloneStart()
		e.vaet.SetDistance(pl.DistanceMM, &e.Config, false)
		e.vaet.SetSpeedForward(pl.SpeedLevel, false)
		e.vaet.SetSpeedBackward(pl.SpeedLevel, false)
		if err := e.vaet.Start(e.currentStep, &e.Config); err != nil {
			return err
		}
		e.activeMove = MovementVAET
		return nil
	})
	e.registry.Register(CmdStop, func(any) error {
		e.Stop()
		return nil
	})
	e.registry.Register(CmdTogglePause, func(any) error {
		e.TogglePause(core.GetTimeMS())
		return nil
	})

	e.registry.Register(CmdSetOscillation, func(p any) error {
		pl, ok := p.(SetOscillationPayload)
		if !ok {
			return ErrBadPayload
		}
		e.osc.SetConfig(pl.Config)
		return nil
	})
	e.registry.Register(CmdStartOscillation, func(any) error {
		if !e.ensureCalibrated(CmdStartOscillation, nil) {
			return nil
		}
		e.stopSequenceForStandaloneStart()
		if err := e.osc.Start(&e.Config); err != nil {
			return err
		}
		e.activeMove = MovementOscillation
		return nil
	})
	e.registry.Register(CmdStopOscillation, func(any) error {
		e.osc.Stop(&e.Config)
		e.activeMove = MovementNone
		return nil
	})

	e.registry.Register(CmdSetChaos, func(p any) error {
		pl, ok := p.(SetChaosPayload)
		if !ok {
			return ErrBadPayload
		}
		e.chaos.Config = pl.Config
		return nil
	})
	e.registry.Register(CmdStartChaos, func(any) error {
		if !e.ensureCalibrated(CmdStartChaos, nil) {
			return nil
		}
		e.stopSequenceForStandaloneStart()
		if err := e.chaos.Start(&e.Config); err != nil {
			return err
		}
		e.activeMove = MovementChaos
		return nil
	})
	e.registry.Register(CmdStopChaos, func(any) error {
		e.chaos.Stop(&e.Config)
		e.activeMove = MovementNone
		return nil
	})

	e.registry.Register(CmdPursuitMove, func(p any) error {
		pl, ok := p.(PursuitMovePayload)
		if !ok {
			return ErrBadPayload
		}
		if !e.ensureCalibrated(CmdPursuitMove, pl) {
			return nil
		}
		if e.activeMove != MovementPursuit {
			e.stopSequenceForStandaloneStart()
			if err := e.pursuit.Start(e.currentStep, pl.TargetMM, pl.MaxSpeedLevel, &e.Config); err != nil {
				return err
			}
			e.activeMove = MovementPursuit
			return nil
		}
		e.pursuit.SetTarget(pl.TargetMM, pl.MaxSpeedLevel, &e.Config)
		return nil
	})

	e.registry.Register(CmdReturnToStart, func(any) error {
		e.ReturnToStart()
		return nil
	})
	e.registry.Register(CmdCalibrate, func(any) error {
		e.Calibrate()
		return nil
	})

	e.registry.Register(CmdSeqAdd, func(p any) error {
		pl, ok := p.(SeqAddPayload)
		if !ok {
			return ErrBadPayload
		}
		_, err := e.seq.AddLine(pl.Line)
		return err
	})
	e.registry.Register(CmdSeqUpdate, func(p any) error {
		pl, ok := p.(SeqUpdatePayload)
		if !ok {
			return ErrBadPayload
		}
		return e.seq.UpdateLine(pl.ID, pl.Line)
	})
	e.registry.Register(CmdSeqDelete, func(p any) error {
		pl, ok := p.(SeqDeletePayload)
		if !ok {
			return ErrBadPayload
		}
		return e.seq.DeleteLine(pl.ID)
	})
	e.registry.Register(CmdSeqMove, func(p any) error {
		pl, ok := p.(SeqMovePayload)
		if !ok {
			return ErrBadPayload
		}
		return e.seq.MoveLine(pl.ID, pl.ToIndex)
	})
	e.registry.Register(CmdSeqDuplicate, func(p any) error {
		pl, ok := p.(SeqDuplicatePayload)
		if !ok {
			return ErrBadPayload
		}
		_, err := e.seq.DuplicateLine(pl.ID)
		return err
	})
	e.registry.Register(CmdSeqClear, func(any) error {
		e.seq.Clear()
		return nil
	})
	e.registry.Register(CmdSeqImport, func(p any) error {
		pl, ok := p.(SeqImportPayload)
		if !ok {
			return ErrBadPayload
		}
		return e.seq.ImportLines(pl.Lines)
	})
	e.registry.Register(CmdSeqStart, func(p any) error {
		pl, ok := p.(SeqStartPayload)
		if !ok {
			return ErrBadPayload
		}
		if err := e.seq.Start(pl.Loop, e.currentStep, &e.Config, &e.activeMove); err != nil {
			return err
		}
		return nil
	})
	e.registry.Register(CmdSeqStop, func(any) error {
		e.seq.Stop(&e.Config, &e.activeMove)
		return nil
	})
}
