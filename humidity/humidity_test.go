// Copyright (C) 2021-2026, Benjamin Drung <bdrung@posteo.de>
// SPDX-License-Identifier: ISC

package humidity

import (
	"math"
	"testing"
)

// Hand-derived with the exact formula constants for 0.01 g/g specific
// humidity at 101325 Pa and 20 °C.
const (
	goldenRelativeHumidity = 0.69829
	goldenDewpoint         = 14.3187
)

func TestRelativeFromSpecificGolden(t *testing.T) {
	rh := RelativeFromSpecific(0.01, 101325, 20)
	if math.Abs(rh-goldenRelativeHumidity) > 1e-4 {
		t.Errorf("RelativeFromSpecific(0.01, 101325, 20) = %v, want %v", rh, goldenRelativeHumidity)
	}
}

func TestDewpointGolden(t *testing.T) {
	dewpoint := Dewpoint(0.01, 101325, 20)
	if math.Abs(dewpoint-goldenDewpoint) > 1e-3 {
		t.Errorf("Dewpoint(0.01, 101325, 20) = %v, want %v", dewpoint, goldenDewpoint)
	}
}

func TestDewpointEnvelope(t *testing.T) {
	// Within the documented validity range (temperature 0-60 °C, relative
	// humidity up to 100%) the dewpoint stays in 0-50 °C and never exceeds
	// the air temperature.
	tests := []struct {
		tempCelsius float64
		rh          float64
	}{
		{0.0, 1.0},
		{10.0, 0.95},
		{20.0, 0.70},
		{30.0, 0.50},
		{40.0, 0.40},
		{50.0, 0.60},
		{60.0, 0.35},
	}

	const pressure = 101325.0
	for _, test := range tests {
		q := SpecificFromRelative(test.rh, pressure, test.tempCelsius)
		dewpoint := Dewpoint(q, pressure, test.tempCelsius)
		if dewpoint < -1e-9 || dewpoint > 50 {
			t.Errorf(
				"Dewpoint for %v%% humidity at %v °C outside [0, 50]: %v",
				100*test.rh, test.tempCelsius, dewpoint)
		}
		if dewpoint > test.tempCelsius+1e-9 {
			t.Errorf(
				"Dewpoint for %v%% humidity at %v °C exceeds air temperature: %v",
				100*test.rh, test.tempCelsius, dewpoint)
		}
	}
}

func TestDewpointDeterminism(t *testing.T) {
	first := Dewpoint(0.0123, 98000, 31.5)
	second := Dewpoint(0.0123, 98000, 31.5)
	if first != second {
		t.Errorf("Dewpoint is not deterministic: %v != %v", first, second)
	}
}

func TestDewpointMonotonicInHumidity(t *testing.T) {
	humidities := []float64{0.002, 0.005, 0.01, 0.015, 0.02}
	previous := math.Inf(-1)
	for _, q := range humidities {
		dewpoint := Dewpoint(q, 101325, 25)
		if dewpoint <= previous {
			t.Errorf(
				"Dewpoint not increasing with specific humidity: Dewpoint(%v) = %v <= %v",
				q, dewpoint, previous)
		}
		previous = dewpoint
	}
}

func TestDewpointSlice(t *testing.T) {
	q := []float64{0.004, 0.008, 0.012, 0.016}
	p := []float64{101325, 100000, 98000, 95000}
	temp := []float64{10, 20, 30, 40}

	got := DewpointSlice(q, p, temp)
	if len(got) != len(q) {
		t.Fatalf("DewpointSlice returned %d values, want %d", len(got), len(q))
	}
	for i := range q {
		want := Dewpoint(q[i], p[i], temp[i])
		if got[i] != want {
			t.Errorf("DewpointSlice()[%d] = %v, want scalar result %v", i, got[i], want)
		}
	}
}

func TestDewpointSliceLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("DewpointSlice did not panic on mismatched lengths")
		}
	}()
	DewpointSlice([]float64{0.01, 0.02}, []float64{101325}, []float64{20, 25})
}

func TestDewpointDegenerateInputs(t *testing.T) {
	tests := []struct {
		name string
		q    float64
	}{
		{"zero humidity", 0.0},
		{"negative humidity", -0.01},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rh := RelativeFromSpecific(test.q, 101325, 20)
			if test.q == 0 && rh != 0 {
				t.Errorf("RelativeFromSpecific(0, 101325, 20) = %v, want 0", rh)
			}
			dewpoint := Dewpoint(test.q, 101325, 20)
			if !math.IsNaN(dewpoint) && !math.IsInf(dewpoint, 0) {
				t.Errorf("Dewpoint(%v, 101325, 20) = %v, want non-finite", test.q, dewpoint)
			}
		})
	}
}

func TestSpecificRelativeRoundTrip(t *testing.T) {
	tests := []struct {
		rh          float64
		pressure    float64
		tempCelsius float64
	}{
		{0.3, 101325, 15},
		{0.5, 98000, 25},
		{0.8, 100000, 5},
		{1.0, 101325, 35},
	}

	for _, test := range tests {
		q := SpecificFromRelative(test.rh, test.pressure, test.tempCelsius)
		rh := RelativeFromSpecific(q, test.pressure, test.tempCelsius)
		if math.Abs(rh-test.rh) > 1e-12 {
			t.Errorf(
				"Round trip for %v%% humidity at %v Pa, %v °C was incorrect, got: %v",
				100*test.rh, test.pressure, test.tempCelsius, rh)
		}
	}
}

func TestAbsoluteFromRelative(t *testing.T) {
	tests := []struct {
		rh          float64
		tempCelsius float64
		ah          float64
	}{
		{40.0, 20.0, 6.9},
		{50.0, 15.0, 6.4},
		{70.0, 20.0, 12.1},
		{80.0, 15.0, 10.3},
		{80.0, -10.0, 1.9},
		{20.0, 50.0, 16.6},
	}

	for _, test := range tests {
		ah := AbsoluteFromRelative(test.rh, test.tempCelsius)
		if math.Abs(ah-test.ah) > 0.05 {
			t.Errorf(
				"Absolute humidity for %f%% humidity at %f° C was incorrect, got: %f, want: %f.",
				test.rh, test.tempCelsius, ah, test.ah)
		}
	}
}

func TestHeatIndex(t *testing.T) {
	heatIndex := HeatIndex(32, 70)
	if math.Abs(heatIndex-40.409) > 0.01 {
		t.Errorf("HeatIndex(32, 70) = %v, want 40.409", heatIndex)
	}
}
