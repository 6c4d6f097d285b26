// Copyright (C) 2021-2026, Benjamin Drung <bdrung@posteo.de>
// SPDX-License-Identifier: ISC

package main

import (
	"testing"
	"time"
)

func TestNewInfluxRecorderClose(t *testing.T) {
	t.Setenv("INFLUX_TOKEN", "test-token")
	recorder, err := NewInfluxRecorder(InfluxConfig{
		Host:        "https://influx.example.org",
		TokenEnv:    "INFLUX_TOKEN",
		Database:    "climate",
		Measurement: "climate",
		Interval:    time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewInfluxRecorder() unexpected error: %v", err)
	}
	if recorder.measurement != "climate" {
		t.Errorf("measurement: got %q, want climate", recorder.measurement)
	}
	if recorder.interval != time.Second {
		t.Errorf("interval: got %v, want 1s", recorder.interval)
	}
	// Close must be safe without any prior write; main calls it on the
	// serve-error exit path.
	recorder.Close()
}
