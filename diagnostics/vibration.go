//go:build rp2040 || rp2350

// Package diagnostics provides optional, non-safety-critical sensor taps
// the Supervisor can sample for telemetry. Nothing in here gates a motion
// or safety decision — a missing or failed sensor simply means the
// vibration figure in
// the telemetry snapshot reads 0.
package diagnostics

import (
	"machine"

	"tinygo.org/x/drivers/adxl345"
)

const (
	vibrationI2CAddr = 0x53 // SDO/ALT-ADDRESS pin low
)

// VibrationMonitor samples an ADXL345 accelerometer mounted on the
// carriage and reduces its readings to a single coarse "activity" figure,
// folded into the status snapshot as a diagnostic-only field.
type VibrationMonitor struct {
	sensor  adxl345.Device
	ready   bool
	lastMag int32 // |x|+|y|+|z| of the last sample, raw counts
	peakMag int32
}

// NewVibrationMonitor configures the accelerometer on the given I2C bus.
// Returns a monitor with ready=false if the bus or sensor isn't present;
// Sample becomes a no-op in that case rather than an error, since this tap
// is diagnostic-only.
func NewVibrationMonitor(bus *machine.I2C) *VibrationMonitor {
	m := &VibrationMonitor{}
	if bus == nil {
		return m
	}
	if err := bus.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz}); err != nil {
		return m
	}
	m.sensor = adxl345.New(bus)
	m.sensor.Configure()
	m.sensor.SetRange(adxl345.RANGE_16G)
	m.sensor.SetRate(adxl345.RATE_100HZ)
	m.ready = true
	return m
}

// Sample takes one reading and updates the rolling activity figures. Safe
// to call from the Supervisor's telemetry tick; it never blocks the motion
// core since it is only ever invoked from the service-core side of the
// snapshot assembly.
func (m *VibrationMonitor) Sample() {
	if !m.ready {
		return
	}
	x, y, z := m.sensor.ReadRawAcceleration()
	mag := abs32(int32(x)) + abs32(int32(y)) + abs32(int32(z))
	m.lastMag = mag
	if mag > m.peakMag {
		m.peakMag = mag
	}
}

// Activity returns a coarse 0-100 vibration-activity figure derived from
// the peak sample magnitude seen since the last ResetPeak, for inclusion
// in telemetry. Returns 0 if the sensor was never brought up.
func (m *VibrationMonitor) Activity() uint8 {
	if !m.ready {
		return 0
	}
	// ~256 counts/g at ±16g range; treat 2g of combined-axis deviation as
	// "fully active" for the purposes of this coarse indicator.
	const fullScale = 256 * 2 * 3
	pct := int32(m.peakMag) * 100 / fullScale
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return uint8(pct)
}

// ResetPeak clears the accumulated peak, typically called once per
// telemetry period so Activity reflects only the most recent window.
func (m *VibrationMonitor) ResetPeak() {
	m.peakMag = 0
}

// Ready reports whether the underlying sensor was brought up successfully.
func (m *VibrationMonitor) Ready() bool {
	return m.ready
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
