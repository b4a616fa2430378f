// Package atmosphere compares observed soundings against a simplified
// International Standard Atmosphere: a linear lapse-rate troposphere capped by
// an isothermal stratosphere.
//
// Heights come from the standard barometric formula. The functions here are
// deterministic and perform no validation; BuildProfile is the entry point
// that rejects bad input.
package atmosphere

import (
	"math"

	"github.com/okian/stratowatch/internal/domain/model"
)

// Reference atmosphere constants. The lapse rate is 6.5 °C/km expressed per meter.
const (
	SeaLevelPressureHPa = 1013.25
	SeaLevelTempC       = 15.0
	LapseRateCPerM      = 0.0065
	TropopausePressure  = 226.32
	StratosphereTempC   = -56.5
	MinPressureHPa      = 1.0
	MaxPressureHPa      = 1100.0
)

// Observed temperatures outside this range are rejected as instrument errors.
const (
	MinObservedTempC = -150.0
	MaxObservedTempC = 100.0
)

const (
	barometricScaleM   = 44330.8
	barometricExponent = 0.190263
)

// GeopotentialHeight converts a pressure in hPa to a height in meters above
// mean sea level: h = 44330.8·(1 − (p/1013.25)^0.190263).
func GeopotentialHeight(pressureHPa float64) float64 {
	return barometricScaleM * (1 - math.Pow(pressureHPa/SeaLevelPressureHPa, barometricExponent))
}

// PressureAtHeight is the inverse of GeopotentialHeight. Heights at or above
// the top of the barometric model return 0.
func PressureAtHeight(heightM float64) float64 {
	ratio := 1 - heightM/barometricScaleM
	if ratio <= 0 {
		return 0
	}
	return SeaLevelPressureHPa * math.Pow(ratio, 1/barometricExponent)
}

// LayerAt reports which reference layer a pressure falls into. The tropopause
// pressure itself belongs to the troposphere.
func LayerAt(pressureHPa float64) model.Layer {
	if pressureHPa >= TropopausePressure {
		return model.Troposphere
	}
	return model.Stratosphere
}

// ReferenceTemperature returns the reference temperature in °C at a pressure
// level. The troposphere cools linearly with geopotential height; the
// stratosphere is held at a constant -56.5 °C. The two branches meet at the
// tropopause to within 1e-4 °C.
func ReferenceTemperature(pressureHPa float64) float64 {
	if LayerAt(pressureHPa) == model.Stratosphere {
		return StratosphereTempC
	}
	return SeaLevelTempC - LapseRateCPerM*GeopotentialHeight(pressureHPa)
}
