package motion

import "beltctl/core"

// ContactSensors reads the two active-low limit-contact inputs. A
// debounced read uses majority voting over N samples with a delay between
// samples and exits early once a majority has agreed, rather than always
// taking the full N samples.
type ContactSensors struct {
	gpio     core.GPIODriver
	startPin core.GPIOPin
	endPin   core.GPIOPin
	sleepUS  func(us uint32)
}

// NewContactSensors configures both inputs with internal pull-ups.
// sleepUS is the platform's busy-wait primitive between debounce samples;
// it may be nil, in which case debouncing degrades to back-to-back reads
// with no inter-sample delay (acceptable for the fake clock in tests).
func NewContactSensors(gpio core.GPIODriver, startPin, endPin core.GPIOPin, sleepUS func(uint32)) (*ContactSensors, error) {
	if err := gpio.ConfigureInputPullUp(startPin); err != nil {
		return nil, err
	}
	if err := gpio.ConfigureInputPullUp(endPin); err != nil {
		return nil, err
	}
	return &ContactSensors{gpio: gpio, startPin: startPin, endPin: endPin, sleepUS: sleepUS}, nil
}

// RawStart reads the start contact once, without debouncing. Active-low:
// true means pressed.
func (c *ContactSensors) RawStart() bool {
	return !c.gpio.ReadPin(c.startPin)
}

// RawEnd reads the end contact once, without debouncing.
func (c *ContactSensors) RawEnd() bool {
	return !c.gpio.ReadPin(c.endPin)
}

// IsStartActive performs a debounced read of the start contact. n<=0
// defaults to 3 samples.
func (c *ContactSensors) IsStartActive(n int, delayUS uint32) bool {
	if n <= 0 {
		n = 3
	}
	return c.majorityVote(c.RawStart, n, delayUS)
}

// IsEndActive performs a debounced read of the end contact. n<=0 defaults
// to 5 samples.
func (c *ContactSensors) IsEndActive(n int, delayUS uint32) bool {
	if n <= 0 {
		n = 5
	}
	return c.majorityVote(c.RawEnd, n, delayUS)
}

// majorityVote samples read n times (or fewer, exiting as soon as a
// majority has agreed one way) with delayUS between samples.
func (c *ContactSensors) majorityVote(read func() bool, n int, delayUS uint32) bool {
	majority := n/2 + 1
	trueCount, falseCount := 0, 0
	for i := 0; i < n; i++ {
		if read() {
			trueCount++
		} else {
			falseCount++
		}
		if trueCount >= majority {
			return true
		}
		if falseCount >= majority {
			return false
		}
		if i < n-1 && delayUS > 0 && c.sleepUS != nil {
			c.sleepUS(delayUS)
		}
	}
	return trueCount > falseCount
}

// CheckHardDriftStart performs the conditional hard-drift check near the
// start: only takes the debounced contact reading when currentStep is
// inside the hard-drift test zone, to keep overhead low over the bulk of
// travel.
func (c *ContactSensors) CheckHardDriftStart(currentStep int32, pc PlatformConstants) bool {
	zoneSteps := mmToSteps(pc.HardDriftTestZoneMM, pc.StepsPerMM)
	if currentStep > zoneSteps {
		return false
	}
	return c.IsStartActive(3, 20)
}

// CheckHardDriftEnd is the end-side equivalent of CheckHardDriftStart.
func (c *ContactSensors) CheckHardDriftEnd(currentStep, maxStep int32, pc PlatformConstants) bool {
	zoneSteps := mmToSteps(pc.HardDriftTestZoneMM, pc.StepsPerMM)
	if maxStep-currentStep > zoneSteps {
		return false
	}
	return c.IsEndActive(5, 20)
}

// CheckAndCorrectDriftStart reports whether currentStep has overrun the
// start boundary (minStep) by less than bufferSteps — a soft drift the
// caller should correct by reversing locally rather than faulting.
func CheckAndCorrectDriftStart(currentStep, minStep, bufferSteps int32) bool {
	overrun := minStep - currentStep
	return overrun > 0 && overrun <= bufferSteps
}

// CheckAndCorrectDriftEnd is the end-side equivalent of
// CheckAndCorrectDriftStart.
func CheckAndCorrectDriftEnd(currentStep, maxStep, bufferSteps int32) bool {
	overrun := currentStep - maxStep
	return overrun > 0 && overrun <= bufferSteps
}
