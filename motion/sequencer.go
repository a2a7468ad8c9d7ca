package motion

import "errors"

// Sequencer runs a stored program of SequenceLines against the three
// line-addressable movement controllers. It owns the program storage and
// the line-advance state machine; it does not itself touch the
// motor. Each line's movement controller self-positions on its own Start,
// so the sequencer needs no separate positioning preamble between lines.
//
// A line's CycleCount is forwarded to whichever controller can enforce it
// natively (Oscillation's own TargetCycleCount); VAET and Chaos have no
// such concept, so the sequencer counts their completion events itself
// (a chaos line's CycleCount counts pattern changes, since PatternsExecuted
// is the only progress signal chaos exposes).
type Sequencer struct {
	vaet  *VAETController
	osc   *OscillationController
	chaos *ChaosController

	lines     [MaxSequenceLines]SequenceLine
	lineCount int

	State SequenceExecutionState
}

// ErrSequenceLineNotFound is returned by UpdateLine/DeleteLine/MoveLine/
// DuplicateLine when no stored line matches the given id.
var ErrSequenceLineNotFound = errors.New("motion: sequence line not found")

// ErrSequenceProgramFull is returned by AddLine/DuplicateLine once the
// program holds MaxSequenceLines entries.
var ErrSequenceProgramFull = errors.New("motion: sequence program full")

// ErrSequenceProgramEmpty is returned by Start when the program has no
// lines to run.
var ErrSequenceProgramEmpty = errors.New("motion: sequence program is empty")

// NewSequencer wires a sequencer over the shared VAET, Oscillation and
// Chaos controllers (Pursuit is not sequenceable: SequenceLine has no
// pursuit variant).
func NewSequencer(vaet *VAETController, osc *OscillationController, chaos *ChaosController) *Sequencer {
	return &Sequencer{vaet: vaet, osc: osc, chaos: chaos}
}

func (s *Sequencer) indexOf(id uint32) int {
	for i := 0; i < s.lineCount; i++ {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Sequencer) nextID() uint32 {
	var max uint32
	for i := 0; i < s.lineCount; i++ {
		if s.lines[i].ID > max {
			max = s.lines[i].ID
		}
	}
	return max + 1
}

// AddLine appends a new line, assigning it the next free id.
func (s *Sequencer) AddLine(line SequenceLine) (uint32, error) {
	if s.lineCount >= MaxSequenceLines {
		return 0, ErrSequenceProgramFull
	}
	line.ID = s.nextID()
	s.lines[s.lineCount] = line
	s.lineCount++
	return line.ID, nil
}

// UpdateLine replaces the stored line matching id, keeping the id fixed.
func (s *Sequencer) UpdateLine(id uint32, line SequenceLine) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrSequenceLineNotFound
	}
	line.ID = id
	s.lines[idx] = line
	return nil
}

// DeleteLine removes the stored line matching id.
func (s *Sequencer) DeleteLine(id uint32) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrSequenceLineNotFound
	}
	copy(s.lines[idx:s.lineCount-1], s.lines[idx+1:s.lineCount])
	s.lineCount--
	s.lines[s.lineCount] = SequenceLine{}
	return nil
}

// MoveLine relocates the line matching id to newIndex, shifting the lines
// between the old and new positions.
func (s *Sequencer) MoveLine(id uint32, newIndex int) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrSequenceLineNotFound
	}
	if newIndex < 0 || newIndex >= s.lineCount {
		return errors.New("motion: sequence move index out of range")
	}
	line := s.lines[idx]
	if idx < newIndex {
		copy(s.lines[idx:newIndex], s.lines[idx+1:newIndex+1])
	} else if idx > newIndex {
		copy(s.lines[newIndex+1:idx+1], s.lines[newIndex:idx])
	}
	s.lines[newIndex] = line
	return nil
}

// DuplicateLine inserts a copy of the line matching id directly after it,
// with a fresh id.
func (s *Sequencer) DuplicateLine(id uint32) (uint32, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return 0, ErrSequenceLineNotFound
	}
	if s.lineCount >= MaxSequenceLines {
		return 0, ErrSequenceProgramFull
	}
	dup := s.lines[idx]
	dup.ID = s.nextID()
	copy(s.lines[idx+2:s.lineCount+1], s.lines[idx+1:s.lineCount])
	s.lines[idx+1] = dup
	s.lineCount++
	return dup.ID, nil
}

// Clear empties the program.
func (s *Sequencer) Clear() {
	s.lineCount = 0
	s.lines = [MaxSequenceLines]SequenceLine{}
}

// ExportLines returns a copy of the stored program, in order.
func (s *Sequencer) ExportLines() []SequenceLine {
	out := make([]SequenceLine, s.lineCount)
	copy(out, s.lines[:s.lineCount])
	return out
}

// ImportLines replaces the stored program wholesale.
func (s *Sequencer) ImportLines(lines []SequenceLine) error {
	if len(lines) > MaxSequenceLines {
		return errors.New("motion: sequence program exceeds max lines")
	}
	s.Clear()
	copy(s.lines[:], lines)
	s.lineCount = len(lines)
	return nil
}

// LineCount reports how many lines the program holds.
func (s *Sequencer) LineCount() int {
	return s.lineCount
}

// Start begins running the program from its first enabled line. loop
// selects whether the program repeats after its last line.
func (s *Sequencer) Start(loop bool, currentStep int32, sys *SystemConfig, activeMovement *MovementType) error {
	if s.lineCount == 0 {
		return ErrSequenceProgramEmpty
	}
	sys.ExecutionContext = ContextSequencer
	s.State = SequenceExecutionState{IsRunning: true, IsLoopMode: loop}
	return s.startLine(0, currentStep, sys, activeMovement)
}

// Stop halts whichever controller is currently running the active line and
// drops execution context back to standalone. The caller also invokes Stop
// before honoring a standalone start command, so a user start always wins
// over a running program.
func (s *Sequencer) Stop(sys *SystemConfig, activeMovement *MovementType) {
	s.stopActive(sys, activeMovement)
	s.State.IsRunning = false
	sys.ExecutionContext = ContextStandalone
}

func (s *Sequencer) stopActive(sys *SystemConfig, activeMovement *MovementType) {
	switch *activeMovement {
	case MovementVAET:
		s.vaet.Stop(sys)
	case MovementOscillation:
		s.osc.Stop(sys)
	case MovementChaos:
		s.chaos.Stop(sys)
	}
	*activeMovement = MovementNone
}

// startLine starts the first enabled line at or after idx, falling through
// to onProgramComplete once idx runs past the last line.
func (s *Sequencer) startLine(idx int, currentStep int32, sys *SystemConfig, activeMovement *MovementType) error {
	for idx < s.lineCount && !s.lines[idx].Enabled {
		idx++
	}
	if idx >= s.lineCount {
		return s.onProgramComplete(currentStep, sys, activeMovement)
	}

	line := s.lines[idx]
	s.State.CurrentLineIndex = idx
	s.State.CurrentCycleInLine = 0
	s.State.IsWaitingPause = false

	var err error
	switch line.Movement {
	case MovementVAET:
		s.vaet.Motion = line.VAET
		err = s.vaet.Start(currentStep, sys)
		*activeMovement = MovementVAET
	case MovementOscillation:
		s.osc.Config = line.Osc
		s.osc.Config.TargetCycleCount = line.CycleCount
		s.osc.staging = false // the line's config wins over any staged user edit
		err = s.osc.Start(sys)
		*activeMovement = MovementOscillation
	case MovementChaos:
		s.chaos.Config = line.Chaos
		err = s.chaos.Start(sys)
		*activeMovement = MovementChaos
	default:
		err = errors.New("motion: unsupported sequence line movement type")
	}
	if err != nil {
		*activeMovement = MovementNone
	}
	return err
}

func (s *Sequencer) onProgramComplete(currentStep int32, sys *SystemConfig, activeMovement *MovementType) error {
	if s.State.IsLoopMode {
		s.State.LoopCount++
		return s.startLine(0, currentStep, sys, activeMovement)
	}
	s.State.IsRunning = false
	sys.ExecutionContext = ContextStandalone
	*activeMovement = MovementNone
	sys.CurrentState = StateReady
	return nil
}

// cyclesNeeded reports how many controller-reported completions a line
// needs before the sequencer advances past it; zero is treated as one line
// pass rather than "run forever", since a sequence line must eventually
// finish for the program to progress.
func cyclesNeeded(line SequenceLine) uint32 {
	if line.CycleCount == 0 {
		return 1
	}
	return line.CycleCount
}

// OnControllerComplete is called by the Supervisor when the active
// controller reports EventCycleComplete while sys.ExecutionContext is
// ContextSequencer. It returns true once the whole line has finished
// (enough completions seen) and the sequencer has moved on — the caller
// uses this to decide whether to surface EventSequenceLineDone in place of
// EventCycleComplete.
func (s *Sequencer) OnControllerComplete(nowMS uint32, currentStep int32, sys *SystemConfig, activeMovement *MovementType) bool {
	if !s.State.IsRunning || s.State.CurrentLineIndex >= s.lineCount {
		return false
	}
	line := s.lines[s.State.CurrentLineIndex]
	s.State.CurrentCycleInLine++
	if s.State.CurrentCycleInLine < cyclesNeeded(line) {
		return false
	}

	s.stopActive(sys, activeMovement)
	if line.PauseAfterMS > 0 {
		s.State.IsWaitingPause = true
		s.State.PauseEndMS = nowMS + line.PauseAfterMS
		return true
	}
	s.startLine(s.State.CurrentLineIndex+1, currentStep, sys, activeMovement)
	return true
}

// Process advances the sequencer's own inter-line pause timer. Per-line
// motion is driven entirely by whichever controller is active; the
// Supervisor calls that controller's Process directly.
func (s *Sequencer) Process(nowMS uint32, currentStep int32, sys *SystemConfig, activeMovement *MovementType) {
	if !s.State.IsRunning || !s.State.IsWaitingPause {
		return
	}
	if int32(nowMS-s.State.PauseEndMS) >= 0 {
		s.State.IsWaitingPause = false
		s.startLine(s.State.CurrentLineIndex+1, currentStep, sys, activeMovement)
	}
}
