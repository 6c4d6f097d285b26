// Copyright (C) 2021-2026, Benjamin Drung <bdrung@posteo.de>
// SPDX-License-Identifier: ISC

// Package humidity converts between atmospheric humidity measures and derives
// dewpoint, absolute humidity, and heat index from sensor readings.
package humidity

import "math"

const (
	gasConstant      = 8.31446261815324             // molar gas constant R in kg * m² / (s² * K * mol)
	molarMassWater   = 0.01801528                   // molar mass of water M(H2O) in kg / mol
	gasConstantWater = gasConstant / molarMassWater // specific gas constant for water vapor in m² / (s² * K)
)

// Constants of the August-Roche-Magnus dewpoint approximation and the
// simplified Clausius-Clapeyron saturation pressure estimate it is paired
// with. The approximation is accurate for temperatures of 0-60 °C and
// relative humidities of 1-100%, yielding dewpoints of 0-50 °C. Outside that
// range results are still computed but not guaranteed to be meaningful.
const (
	airWaterMolarRatio = 28.97 / 18.015 // molar mass of dry air over molar mass of water in (g/mol) / (g/mol)
	referencePressure  = 611.0          // saturation vapor pressure at 0 °C in Pa
	pressureSlope      = 0.067          // slope of the simplified Clausius-Clapeyron relation in 1/°C
	magnusA            = 17.271
	magnusB            = 237.7 // °C
)

// SaturationVaporPressure estimates the saturation vapor pressure of water in
// pascal (Pa) with a simplified Clausius-Clapeyron relation
// es = 611 * exp(0.067 * T).
func SaturationVaporPressure(temperatureCelsius float64) float64 {
	return referencePressure * math.Exp(pressureSlope*temperatureCelsius)
}

// RelativeFromSpecific calculates the relative humidity as a dimensionless
// ratio (1.0 = saturated, not a percentage) for a given specific humidity in
// g of water vapor per g of air, pressure in pascal, and temperature in
// Celsius.
//
// The specific humidity is converted to a mole-fraction-equivalent ratio via
// the molar mass ratio of dry air to water, multiplied by the pressure to get
// the partial pressure of water vapor, and divided by the saturation vapor
// pressure.
func RelativeFromSpecific(specificHumidity float64, pressurePa float64, temperatureCelsius float64) float64 {
	moleFraction := specificHumidity * airWaterMolarRatio
	partialPressure := moleFraction * pressurePa
	return partialPressure / SaturationVaporPressure(temperatureCelsius)
}

// SpecificFromRelative is the inverse of RelativeFromSpecific: it calculates
// the specific humidity in g/g for a given relative humidity ratio (1.0 =
// saturated), pressure in pascal, and temperature in Celsius.
func SpecificFromRelative(relativeHumidity float64, pressurePa float64, temperatureCelsius float64) float64 {
	partialPressure := relativeHumidity * SaturationVaporPressure(temperatureCelsius)
	return partialPressure / pressurePa / airWaterMolarRatio
}

// Dewpoint calculates the dewpoint temperature in Celsius with the
// August-Roche-Magnus approximation for a given specific humidity in g/g,
// pressure in pascal, and temperature in Celsius.
//
// The relative humidity enters the Magnus inversion through its natural
// logarithm. Literature states RH as a percentage, but the ×100 cancels
// algebraically against the log term, so the ratio is used directly.
//
// There is no input validation: a non-positive specific humidity or pressure
// drives the log term to -Inf or NaN, which propagates to a non-finite
// dewpoint per IEEE 754 semantics.
func Dewpoint(specificHumidity float64, pressurePa float64, temperatureCelsius float64) float64 {
	relativeHumidity := RelativeFromSpecific(specificHumidity, pressurePa, temperatureCelsius)
	gamma := (magnusA*temperatureCelsius)/(magnusB+temperatureCelsius) + math.Log(relativeHumidity)
	return (magnusB * gamma) / (magnusA - gamma)
}

// DewpointSlice applies Dewpoint elementwise over equal-length slices and
// returns the dewpoints in a newly allocated slice. There is no broadcasting;
// it panics if the slice lengths differ.
func DewpointSlice(specificHumidity []float64, pressurePa []float64, temperatureCelsius []float64) []float64 {
	if len(pressurePa) != len(specificHumidity) || len(temperatureCelsius) != len(specificHumidity) {
		panic("humidity: DewpointSlice inputs must have equal length")
	}
	dewpoints := make([]float64, len(specificHumidity))
	for i, q := range specificHumidity {
		dewpoints[i] = Dewpoint(q, pressurePa[i], temperatureCelsius[i])
	}
	return dewpoints
}

// buckSaturationVaporPressure calculates the saturation vapour pressure of
// water in hectopascal (hPa) with the Arden Buck equation, because it is the
// most accurate formula for room temperatures.
// See https://en.wikipedia.org/wiki/Vapour_pressure_of_water#Accuracy_of_different_formulations
func buckSaturationVaporPressure(temperatureCelsius float64) float64 {
	e := (18.678 - temperatureCelsius/234.5) * (temperatureCelsius / (257.14 + temperatureCelsius))
	return 6.1121 * math.Exp(e)
}

// AbsoluteFromRelative calculates the absolute humidity in g/m³ for a given
// relative humidity in percent and temperature in Celsius.
//
// The humidity definitions and the ideal gas law were used for deriving the
// formula:
// 1. absoluteHumidity = massWaterVapor / VolumeAirAndWater
// 2. relativeHumidity = partialVaporPressureWater / saturationVaporPressureWater
// 3. partialVaporPressureWater = (massWaterVapor / VolumeAirAndWater) * gasConstantWater * temperatureKelvin
//
// Resulting formula:
// absoluteHumidity = relativeHumidity * saturationVaporPressureWater / (gasConstantWater * temperatureKelvin)
func AbsoluteFromRelative(relativeHumidity float64, temperatureCelsius float64) float64 {
	temperatureKelvin := temperatureCelsius + 273.15
	return 1000 * relativeHumidity * buckSaturationVaporPressure(temperatureCelsius) / (gasConstantWater * temperatureKelvin)
}

// HeatIndex calculates the perceived temperature in Celsius from the air
// temperature in Celsius and the relative humidity in percent, using the NWS
// regression coefficients for Celsius.
// See https://en.wikipedia.org/wiki/Heat_index#Formula
func HeatIndex(temperatureCelsius float64, relativeHumidity float64) float64 {
	const c1 = -8.78469475556
	const c2 = 1.61139411
	const c3 = 2.33854883889
	const c4 = -0.14611605
	const c5 = -0.012308094
	const c6 = -0.0164248277778
	const c7 = 0.002211732
	const c8 = 0.00072546
	const c9 = -0.000003582

	t := temperatureCelsius
	rh := relativeHumidity
	return c1 +
		(c2 * t) + (c3 * rh) +
		(c4 * t * rh) + (c5 * t * t) +
		(c6 * rh * rh) + (c7 * t * t * rh) +
		(c8 * t * rh * rh) + (c9 * t * t * rh * rh)
}
