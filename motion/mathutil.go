package motion

import "github.com/orsinium-labs/tinymath"

// All functions in this file are pure and side-effect-free so the same
// code path that runs on the motion core also runs under go test.

const twoPi = 6.283185307179586

// mmToSteps converts a millimeter distance to a step count using the
// platform's steps-per-mm constant.
func mmToSteps(mm, stepsPerMM float64) int32 {
	return int32(tinymath.Round(float32(mm * stepsPerMM)))
}

// stepsToMM is the inverse of mmToSteps.
func stepsToMM(steps int32, stepsPerMM float64) float64 {
	if stepsPerMM == 0 {
		return 0
	}
	return float64(steps) / stepsPerMM
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// speedToCPM converts a speed level to cycles-per-minute.
func speedToCPM(level, maxLevel float64) float64 {
	return clampF(level*10, 0, maxLevel*10)
}

// vaetStepDelayUS computes the inter-step delay for the VAET controller
// from the target distance and a speed level. Returns 1000us on invalid
// input.
func vaetStepDelayUS(distanceMM, level float64, pc PlatformConstants) uint32 {
	cpm := speedToCPM(level, pc.MaxSpeedLevel)
	stepsPerDir := mmToSteps(distanceMM, pc.StepsPerMM)
	if cpm <= 0 || stepsPerDir <= 0 {
		return 1000
	}
	halfCycleMS := 30000.0 / cpm
	rawUS := halfCycleMS * 1000.0 / float64(stepsPerDir)
	comp := pc.SpeedCompensationFactor
	if comp == 0 {
		comp = 1
	}
	delay := (rawUS - float64(pc.StepExecutionTimeUS)) / comp
	if delay < 20 {
		delay = 20
	}
	return uint32(delay)
}

// chaosStepDelayUS computes the inter-step delay for chaos/oscillation-
// style speed-level-driven motion. Returns 10000us when the computed
// steps-per-second is zero.
func chaosStepDelayUS(level float64, pc PlatformConstants) uint32 {
	mmPerS := level * 10
	sps := mmPerS * pc.StepsPerMM
	if sps <= 0 {
		return 10000
	}
	comp := pc.SpeedCompensationFactor
	if comp == 0 {
		comp = 1
	}
	delay := (1e6 / sps) / comp
	maxDelay := float64(pc.ChaosMaxStepDelayUS)
	if maxDelay == 0 {
		maxDelay = 50000
	}
	return uint32(clampF(delay, 20, maxDelay))
}

// pursuitStepDelayUS computes the inter-step delay for the pursuit
// controller from the position error magnitude and a max speed level.
func pursuitStepDelayUS(errMM, maxLevel float64, pc PlatformConstants) uint32 {
	var level float64
	switch {
	case errMM > 5:
		level = maxLevel
	case errMM > 1:
		level = maxLevel * (0.6 + 0.4*(errMM-1)/4)
	default:
		level = maxLevel * 0.6
	}

	mmPerS := level * 10
	sps := mmPerS * pc.StepsPerMM
	sps = clampF(sps, 30, 6000)

	comp := pc.SpeedCompensationFactor
	if comp == 0 {
		comp = 1
	}
	delay := (1e6 / sps) / comp
	if delay < 20 {
		delay = 20
	}
	return uint32(delay)
}

// curveValue evaluates a zone-effect progress curve at p in [0,1].
func curveValue(curve SpeedCurve, p float64) float64 {
	switch curve {
	case CurveSine:
		return 1 - (1-float64(tinymath.Cos(float32(3.14159265358979*p))))/2
	case CurveTriangleInv:
		return (1 - p) * (1 - p)
	case CurveSineInv:
		return float64(tinymath.Sin(float32((1 - p) * 3.14159265358979 / 2)))
	case CurveLinear:
		fallthrough
	default:
		return 1 - p
	}
}

// zoneSpeedFactor computes the multiplicative delay factor for a zone
// effect given its speed effect kind, curve, intensity (0-100), and
// progress p (0 at zone entry, 1 at zone exit).
func zoneSpeedFactor(effect SpeedEffect, curve SpeedCurve, intensity, p float64) float64 {
	if effect == SpeedEffectNone {
		return 1
	}
	p = clampF(p, 0, 1)
	c := curveValue(curve, p)
	maxIntensity := 1 + (intensity/100)*9

	switch effect {
	case SpeedEffectDecel:
		return 1 + c*(maxIntensity-1)
	case SpeedEffectAccel:
		return 1 - (1-c)*(1-1/maxIntensity)
	default:
		return 1
	}
}

// waveformValue evaluates a waveform at a normalized phase phi in [0,1).
func waveformValue(wave Waveform, phi float64) float64 {
	switch wave {
	case WaveformTriangle:
		switch {
		case phi < 0.5:
			// +1 at phi=0 to -1 at phi=0.5
			return 1 - 4*phi
		default:
			// -1 at phi=0.5 to +1 at phi=1
			return -1 + 4*(phi-0.5)
		}
	case WaveformSquare:
		if phi < 0.5 {
			return 1
		}
		return -1
	case WaveformSine:
		fallthrough
	default:
		return -float64(tinymath.Cos(float32(twoPi * phi)))
	}
}

// effectiveOscFrequency caps a requested oscillation frequency so peak
// linear speed never exceeds OscMaxSpeedMMS.
func effectiveOscFrequency(requestedHz, amplitudeMM float64, pc PlatformConstants) (capped float64, wasCapped bool) {
	if amplitudeMM <= 0 {
		return requestedHz, false
	}
	maxHz := pc.OscMaxSpeedMMS / (twoPi * amplitudeMM)
	if requestedHz > maxHz {
		return maxHz, true
	}
	return requestedHz, false
}

// chaosSafeDuration computes the [min,max) duration bound for a chaos
// pattern given craziness c in [0,1] and a per-pattern max_factor. Both
// bounds are clamped to >=100ms and max>=min+100.
func chaosSafeDuration(base ChaosPatternBaseConfig, c, maxFactor float64) (minMS, maxMS uint32) {
	minF := float64(base.DurationMinMS) - float64(base.DurationCrazinessReductionMS)*c
	maxF := float64(base.DurationMaxMS) - (float64(base.DurationMaxMS)-float64(base.DurationMinMS))*c*maxFactor

	if minF < 100 {
		minF = 100
	}
	if maxF < minF+100 {
		maxF = minF + 100
	}
	return uint32(minF), uint32(maxF)
}
