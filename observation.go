// Copyright (C) 2021-2026, Benjamin Drung <bdrung@posteo.de>
// SPDX-License-Identifier: ISC

package main

import "github.com/bdrung/prometheus-dewpoint-exporter/humidity"

// Observation is one fully derived climate reading from a sensor.
type Observation struct {
	TemperatureC     float64
	RelativeHumidity float64 // percent
	PressurePa       float64
	SpecificHumidity float64 // g/g
	DewpointC        float64
	AbsoluteHumidity float64 // g/m³
	HeatIndexC       float64
}

// deriveObservation converts the relative humidity reading into specific
// humidity and derives dewpoint, absolute humidity, and heat index from it.
// Degenerate inputs (zero humidity, zero pressure) yield non-finite derived
// values; callers decide whether to publish those.
func deriveObservation(temperatureC float64, relativeHumidity float64, pressurePa float64) Observation {
	specificHumidity := humidity.SpecificFromRelative(relativeHumidity/100, pressurePa, temperatureC)
	return Observation{
		TemperatureC:     temperatureC,
		RelativeHumidity: relativeHumidity,
		PressurePa:       pressurePa,
		SpecificHumidity: specificHumidity,
		DewpointC:        humidity.Dewpoint(specificHumidity, pressurePa, temperatureC),
		AbsoluteHumidity: humidity.AbsoluteFromRelative(relativeHumidity, temperatureC),
		HeatIndexC:       humidity.HeatIndex(temperatureC, relativeHumidity),
	}
}
