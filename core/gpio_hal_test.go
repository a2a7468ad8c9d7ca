package core

import "testing"

type recordingGPIO struct {
	outputs map[GPIOPin]bool
	pins    map[GPIOPin]bool
}

func newRecordingGPIO() *recordingGPIO {
	return &recordingGPIO{outputs: map[GPIOPin]bool{}, pins: map[GPIOPin]bool{}}
}

func (g *recordingGPIO) ConfigureOutput(pin GPIOPin) error {
	g.outputs[pin] = true
	return nil
}

func (g *recordingGPIO) ConfigureInputPullUp(pin GPIOPin) error   { return nil }
func (g *recordingGPIO) ConfigureInputPullDown(pin GPIOPin) error { return nil }

func (g *recordingGPIO) SetPin(pin GPIOPin, value bool) error {
	g.pins[pin] = value
	return nil
}

func (g *recordingGPIO) GetPin(pin GPIOPin) (bool, error) {
	return g.pins[pin], nil
}

func (g *recordingGPIO) ReadPin(pin GPIOPin) bool {
	return g.pins[pin]
}

func TestMustGPIOPanicsWithoutDriver(t *testing.T) {
	prev := gpioDriver
	gpioDriver = nil
	defer func() { gpioDriver = prev }()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected MustGPIO to panic when no driver is registered")
		}
	}()
	MustGPIO()
}

func TestMustGPIOReturnsRegisteredDriver(t *testing.T) {
	prev := gpioDriver
	defer func() { gpioDriver = prev }()

	d := newRecordingGPIO()
	SetGPIODriver(d)
	if MustGPIO() != d {
		t.Fatal("MustGPIO did not return the driver passed to SetGPIODriver")
	}
}

func TestGPIOSetAndGetPin(t *testing.T) {
	d := newRecordingGPIO()
	if err := d.ConfigureOutput(GPIOPin(5)); err != nil {
		t.Fatalf("ConfigureOutput: %v", err)
	}
	if err := d.SetPin(GPIOPin(5), true); err != nil {
		t.Fatalf("SetPin: %v", err)
	}
	if !d.ReadPin(GPIOPin(5)) {
		t.Error("expected ReadPin to report the value set by SetPin")
	}
	v, err := d.GetPin(GPIOPin(5))
	if err != nil || !v {
		t.Errorf("GetPin = %v, %v; want true, nil", v, err)
	}
}
