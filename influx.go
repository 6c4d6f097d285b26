// Copyright (C) 2021-2026, Benjamin Drung <bdrung@posteo.de>
// SPDX-License-Identifier: ISC

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
	"github.com/sirupsen/logrus"
)

type recordedSensor struct {
	sensor         Sensor
	tempOffset     float64
	humidityOffset float64
}

// InfluxRecorder periodically polls the sensors and writes the derived
// observations to InfluxDB. Failed polls and writes are logged and skipped;
// the exporter keeps serving metrics either way.
type InfluxRecorder struct {
	client      *influxdb3.Client
	measurement string
	interval    time.Duration
	sensors     []recordedSensor
}

func NewInfluxRecorder(config InfluxConfig, sensors []recordedSensor) (*InfluxRecorder, error) {
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     config.Host,
		Token:    config.Token(),
		Database: config.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to InfluxDB at '%s': %w", config.Host, err)
	}
	logrus.Infof(
		"Recording observations to InfluxDB at %s (database %s, measurement %s) every %s",
		config.Host, config.Database, config.Measurement, config.Interval,
	)
	return &InfluxRecorder{
		client:      client,
		measurement: config.Measurement,
		interval:    config.Interval,
		sensors:     sensors,
	}, nil
}

func (r *InfluxRecorder) Run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for range ticker.C {
		r.recordOnce()
	}
}

func (r *InfluxRecorder) recordOnce() {
	now := time.Now().UTC()
	var points []*influxdb3.Point
	for _, recorded := range r.sensors {
		readings, err := recorded.sensor.Poll()
		if err != nil {
			logrus.Print(err)
			continue
		}
		if readings.temperature == nil || readings.humidity == nil {
			continue
		}
		pressure := defaultPressurePa
		if readings.pressure != nil {
			pressure = *readings.pressure
		}
		observation := deriveObservation(
			*readings.temperature+recorded.tempOffset,
			*readings.humidity+recorded.humidityOffset,
			pressure,
		)
		point := influxdb3.NewPointWithMeasurement(r.measurement).
			SetField("temperature_C", observation.TemperatureC).
			SetField("humidity_percent", observation.RelativeHumidity).
			SetField("pressure_Pa", observation.PressurePa).
			SetField("absolute_humidity_g_m3", observation.AbsoluteHumidity).
			SetTimestamp(now)
		for name, value := range recorded.sensor.Labels() {
			point.SetTag(name, value)
		}
		if finite(observation.SpecificHumidity) {
			point.SetField("specific_humidity", observation.SpecificHumidity)
		}
		if finite(observation.DewpointC) {
			point.SetField("dewpoint_C", observation.DewpointC)
		}
		points = append(points, point)
	}
	if len(points) == 0 {
		return
	}
	if err := r.client.WritePoints(context.Background(), points); err != nil {
		logrus.Printf("Failed to write %d observation(s) to InfluxDB: %s", len(points), err)
	}
}

func (r *InfluxRecorder) Close() {
	if err := r.client.Close(); err != nil {
		logrus.Print(err)
	}
}
