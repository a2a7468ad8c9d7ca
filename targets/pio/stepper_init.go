//go:build rp2040

package pio

import (
	"beltctl/core"
)

// StepperBackendMode selects which backend the single actuator axis uses.
type StepperBackendMode int

const (
	// StepperBackendAuto prefers PIO, falling back to GPIO if no state
	// machine is free.
	StepperBackendAuto StepperBackendMode = iota
	// StepperBackendPIO uses PIO-based step generation (RP2040/RP2350 only).
	StepperBackendPIO
	// StepperBackendGPIO uses GPIO-based step generation (universal fallback).
	StepperBackendGPIO
)

var (
	stepperBackendMode = StepperBackendAuto

	// PIO allocation tracking. There is only one axis in this engine, so in
	// practice a single slot is ever claimed, but the allocator is kept
	// general so a target with more than one actuator can reuse it.
	pioAllocations = [2][4]bool{}
	nextPIONum     = uint8(0)
	nextSMNum      = uint8(0)
)

// NewStepperBackend builds the backend for the single actuator axis
// according to the current mode. This is called once during platform
// bring-up and the resulting core.StepperBackend is handed to
// motion.NewMotorDriver — there is no global registry or factory callback
// to wire up, since this engine drives exactly one stepper.
func NewStepperBackend() core.StepperBackend {
	switch stepperBackendMode {
	case StepperBackendPIO:
		if b := createPIOBackend(); b != nil {
			return b
		}
		return NewGPIOStepperBackend()
	case StepperBackendGPIO:
		return NewGPIOStepperBackend()
	case StepperBackendAuto:
		if b := createPIOBackend(); b != nil {
			return b
		}
		return NewGPIOStepperBackend()
	default:
		return NewGPIOStepperBackend()
	}
}

// createPIOBackend creates a PIO-based stepper backend, or nil if no PIO
// state machine is available.
func createPIOBackend() core.StepperBackend {
	pioNum, smNum, ok := allocatePIO()
	if !ok {
		return nil
	}
	return NewPIOStepperBackend(pioNum, smNum)
}

// allocatePIO claims a free PIO state machine, round-robin across both
// blocks.
func allocatePIO() (uint8, uint8, bool) {
	for i := 0; i < 8; i++ {
		pioNum := nextPIONum
		smNum := nextSMNum

		nextSMNum++
		if nextSMNum >= 4 {
			nextSMNum = 0
			nextPIONum = (nextPIONum + 1) % 2
		}

		if !pioAllocations[pioNum][smNum] {
			pioAllocations[pioNum][smNum] = true
			return pioNum, smNum, true
		}
	}
	return 0, 0, false
}

// SetStepperBackendMode sets the backend mode; must be called before
// NewStepperBackend.
func SetStepperBackendMode(mode StepperBackendMode) {
	stepperBackendMode = mode
}

// GetPIOAllocationStatus returns PIO allocation status for debugging.
func GetPIOAllocationStatus() [2][4]bool {
	return pioAllocations
}
