package motion

import "beltctl/core"

// fakeGPIO is a recording GPIODriver test double: pins are tracked in a
// map, with no hardware behind them. Tests drive contact-pin state
// through pins[...] directly (ReadPin reflects it).
type fakeGPIO struct {
	pins      map[core.GPIOPin]bool
	outputs   map[core.GPIOPin]bool
	pullups   map[core.GPIOPin]bool
	pulldowns map[core.GPIOPin]bool
}

func newFakeGPIO() *fakeGPIO {
	return &fakeGPIO{
		pins:      map[core.GPIOPin]bool{},
		outputs:   map[core.GPIOPin]bool{},
		pullups:   map[core.GPIOPin]bool{},
		pulldowns: map[core.GPIOPin]bool{},
	}
}

func (f *fakeGPIO) ConfigureOutput(pin core.GPIOPin) error {
	f.outputs[pin] = true
	return nil
}

func (f *fakeGPIO) ConfigureInputPullUp(pin core.GPIOPin) error {
	f.pullups[pin] = true
	if _, ok := f.pins[pin]; !ok {
		f.pins[pin] = true // idle-high, active-low not pressed
	}
	return nil
}

func (f *fakeGPIO) ConfigureInputPullDown(pin core.GPIOPin) error {
	f.pulldowns[pin] = true
	return nil
}

func (f *fakeGPIO) SetPin(pin core.GPIOPin, value bool) error {
	f.pins[pin] = value
	return nil
}

func (f *fakeGPIO) GetPin(pin core.GPIOPin) (bool, error) {
	return f.pins[pin], nil
}

func (f *fakeGPIO) ReadPin(pin core.GPIOPin) bool {
	return f.pins[pin]
}

// fakeStepperBackend is a recording StepperBackend test double.
type fakeStepperBackend struct {
	steps     int
	direction bool
	stopped   bool
	name      string
}

func (b *fakeStepperBackend) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	return nil
}
func (b *fakeStepperBackend) Step()                 { b.steps++ }
func (b *fakeStepperBackend) SetDirection(dir bool) { b.direction = dir }
func (b *fakeStepperBackend) Stop()                 { b.stopped = true }
func (b *fakeStepperBackend) GetName() string {
	if b.name == "" {
		return "fake"
	}
	return b.name
}

const (
	pinStep   core.GPIOPin = 0
	pinDir    core.GPIOPin = 1
	pinEnable core.GPIOPin = 2
	pinStart  core.GPIOPin = 3
	pinEnd    core.GPIOPin = 4
)
