// Copyright (C) 2021-2026, Benjamin Drung <bdrung@posteo.de>
// SPDX-License-Identifier: ISC

package main

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	bsbmp "github.com/d2r2/go-bsbmp"
	i2c "github.com/d2r2/go-i2c"
	logger "github.com/d2r2/go-logger"
	sht3x "github.com/d2r2/go-sht3x"
	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// defaultPressurePa is assumed for sensors without a barometer unless a
// pressure option is given (standard atmosphere).
const defaultPressurePa = 101325.0

type Readings struct {
	temperature *float64
	humidity    *float64
	pressure    *float64
}

type Sensor interface {
	Poll() (Readings, error)
	Labels() prometheus.Labels
}

type BMPSensor struct {
	Address uint8
	Bus     int
	Model   string
	bmp     *bsbmp.BMP
	mutex   sync.Mutex
}

func NewBMPSensor(
	address uint8,
	bus int,
	model string,
	sensorType bsbmp.SensorType,
) (*BMPSensor, error) {
	logrus.Infof("New BMP sensor: %s,address=0x%x,bus=%d", model, address, bus)
	i2c, err := i2c.NewI2C(address, bus)
	if err != nil {
		return nil, err
	}
	bmp, err := bsbmp.NewBMP(sensorType, i2c)
	if err != nil {
		return nil, err
	}
	return &BMPSensor{
		Address: address,
		Bus:     bus,
		Model:   model,
		bmp:     bmp,
	}, nil
}

func (s *BMPSensor) Labels() prometheus.Labels {
	return prometheus.Labels{
		"address": fmt.Sprintf("0x%x", s.Address),
		"bus":     fmt.Sprintf("%d", s.Bus),
		"model":   s.Model,
	}
}

// Poll takes a pointer receiver so all callers lock the same mutex; the
// Prometheus scrape path and the InfluxDB recorder poll concurrently.
func (s *BMPSensor) Poll() (Readings, error) {
	var readings Readings

	s.mutex.Lock()
	temp, err := s.bmp.ReadTemperatureC(bsbmp.ACCURACY_STANDARD)
	s.mutex.Unlock()
	if err != nil {
		return readings, err
	}
	rounded_temp := round64(float64(temp), 2)
	readings.temperature = &rounded_temp

	// TODO: read temperature and humidity in one go for BME280
	s.mutex.Lock()
	supported, rh, err := s.bmp.ReadHumidityRH(bsbmp.ACCURACY_STANDARD)
	s.mutex.Unlock()
	if err != nil {
		return readings, err
	}
	if supported {
		rounded_rh := round64(float64(rh), 2)
		readings.humidity = &rounded_rh
	}

	s.mutex.Lock()
	pressure, err := s.bmp.ReadPressurePa(bsbmp.ACCURACY_STANDARD)
	s.mutex.Unlock()
	if err != nil {
		return readings, err
	}
	rounded_pressure := round64(float64(pressure), 2)
	readings.pressure = &rounded_pressure

	return readings, nil
}

type SHT3xSensor struct {
	Address           uint8
	Bus               int
	Model             string
	Pressure          float64
	I2C               *i2c.I2C
	SHT3X             sht3x.SHT3X
	mutex             sync.Mutex
	repeatability     sht3x.MeasureRepeatability
	repeatability_str string
}

func NewSHT3xSensor(
	address uint8,
	bus int,
	model string,
	repeatability sht3x.MeasureRepeatability,
	repeatability_str string,
	pressure float64,
) (*SHT3xSensor, error) {
	logrus.Infof(
		"New SHT3x sensor: %s,address=0x%x,bus=%d,repeatability=%s,pressure=%g",
		model,
		address,
		bus,
		repeatability_str,
		pressure,
	)
	i2c, err := i2c.NewI2C(address, bus)
	if err != nil {
		return nil, err
	}
	return &SHT3xSensor{
		Address:           address,
		Bus:               bus,
		Model:             model,
		Pressure:          pressure,
		I2C:               i2c,
		SHT3X:             *sht3x.NewSHT3X(),
		repeatability:     repeatability,
		repeatability_str: repeatability_str,
	}, nil
}

func (s *SHT3xSensor) Labels() prometheus.Labels {
	return prometheus.Labels{
		"address":       fmt.Sprintf("0x%x", s.Address),
		"bus":           fmt.Sprintf("%d", s.Bus),
		"model":         s.Model,
		"repeatability": s.repeatability_str,
	}
}

// Poll takes a pointer receiver so all callers lock the same mutex.
func (s *SHT3xSensor) Poll() (Readings, error) {
	var readings Readings

	s.mutex.Lock()
	temp, rh, err := s.SHT3X.ReadTemperatureAndRelativeHumidity(s.I2C, s.repeatability)
	s.mutex.Unlock()
	if err != nil {
		return readings, err
	}

	rounded_temp := round64(float64(temp), 2)
	rounded_rh := round64(float64(rh), 2)
	// The SHT3x has no barometer. The configured static pressure is good
	// enough for the derived humidity measures.
	pressure := s.Pressure
	readings.temperature = &rounded_temp
	readings.humidity = &rounded_rh
	readings.pressure = &pressure
	return readings, nil
}

type SensorFlags struct {
	Model          string
	Address        *uint8
	Bus            *int
	Repeatability  string
	TempOffset     float64
	HumidityOffset float64
	Pressure       *float64
}

func parseSensorFlags(sensor string) (SensorFlags, error) {
	var flags SensorFlags
	fields := strings.Split(sensor, ",")
	flags.Model = fields[0]
	for _, field := range fields[1:] {
		key_value := strings.SplitN(field, "=", 2)
		var value string
		if len(key_value) == 2 {
			value = key_value[1]
		}
		switch key_value[0] {
		case "address":
			if address8, err := strconv.ParseUint(value, 0, 8); err == nil {
				address := uint8(address8)
				flags.Address = &address
			} else {
				return flags,
					fmt.Errorf("Specified address '%s' is not an unsigned integer: %s", value, err)
			}
		case "bus":
			if bus32, err := strconv.ParseInt(value, 0, 32); err == nil {
				bus := int(bus32)
				flags.Bus = &bus
			} else {
				return flags, fmt.Errorf("Specified bus '%s' is not an integer: %s", value, err)
			}
		case "repeatability":
			flags.Repeatability = value
		case "temp_offset":
			var err error
			flags.TempOffset, err = strconv.ParseFloat(value, 64)
			if err != nil {
				return flags, fmt.Errorf("Failed to parse temperature offset '%s': %s", value, err)
			}
		case "humidity_offset":
			var err error
			flags.HumidityOffset, err = strconv.ParseFloat(value, 64)
			if err != nil {
				return flags, fmt.Errorf("Failed to parse humidity offset '%s': %s", value, err)
			}
		case "pressure":
			if pressure, err := strconv.ParseFloat(value, 64); err == nil {
				flags.Pressure = &pressure
			} else {
				return flags, fmt.Errorf("Failed to parse pressure '%s': %s", value, err)
			}
		default:
			return flags, fmt.Errorf("Unknown sensor option '%s'.", key_value[0])
		}
	}
	return flags, nil
}

func (s SensorFlags) NewBMPSensor(sensorType bsbmp.SensorType) (*BMPSensor, error) {
	if s.Pressure != nil {
		return nil, fmt.Errorf(
			"Sensor model '%s' has a barometer and takes no pressure option.", s.Model)
	}

	// Defaults
	if s.Address == nil {
		address := uint8(0x76)
		s.Address = &address
	}
	if s.Bus == nil {
		bus := 0
		s.Bus = &bus
	}

	return NewBMPSensor(*s.Address, *s.Bus, s.Model, sensorType)
}

func (s SensorFlags) NewSHT3xSensor() (*SHT3xSensor, error) {
	// Defaults
	if s.Address == nil {
		address := uint8(0x45)
		s.Address = &address
	}
	if s.Bus == nil {
		bus := 0
		s.Bus = &bus
	}
	if s.Repeatability == "" {
		s.Repeatability = "high"
	}
	if s.Pressure == nil {
		pressure := defaultPressurePa
		s.Pressure = &pressure
	}

	var repeatability sht3x.MeasureRepeatability
	switch s.Repeatability {
	case "low":
		repeatability = sht3x.RepeatabilityLow
	case "medium":
		repeatability = sht3x.RepeatabilityMedium
	case "high":
		repeatability = sht3x.RepeatabilityHigh
	default:
		return nil, fmt.Errorf("Unknown repeatability: %s", s.Repeatability)
	}

	return NewSHT3xSensor(*s.Address, *s.Bus, s.Model, repeatability, s.Repeatability, *s.Pressure)
}

func (s SensorFlags) NewSensor() (Sensor, error) {
	switch s.Model {
	case "BME280":
		return s.NewBMPSensor(bsbmp.BME280)
	case "BMP180":
		return s.NewBMPSensor(bsbmp.BMP180)
	case "BMP280":
		return s.NewBMPSensor(bsbmp.BMP280)
	case "BMP388":
		return s.NewBMPSensor(bsbmp.BMP388)
	case "SHT30", "SHT31", "SHT35":
		return s.NewSHT3xSensor()
	default:
		return nil, fmt.Errorf("Invalid/Unsupported sensor model '%s'!", s.Model)
	}
}

func (s SensorFlags) String() string {
	var b strings.Builder
	b.WriteString(s.Model)
	if s.Address != nil {
		fmt.Fprintf(&b, ",address=0x%x", *s.Address)
	}
	if s.Bus != nil {
		fmt.Fprintf(&b, ",bus=%d", *s.Bus)
	}
	if s.Repeatability != "" {
		fmt.Fprintf(&b, ",repeatability=%s", s.Repeatability)
	}
	if s.TempOffset != 0.0 {
		fmt.Fprintf(&b, ",temp_offset=%g", s.TempOffset)
	}
	if s.HumidityOffset != 0.0 {
		fmt.Fprintf(&b, ",humidity_offset=%g", s.HumidityOffset)
	}
	if s.Pressure != nil {
		fmt.Fprintf(&b, ",pressure=%g", *s.Pressure)
	}
	return b.String()
}

type sensorCollector struct {
	Sensor           Sensor
	Up               *prometheus.Desc
	TemperatureC     *prometheus.Desc
	HumidityRH       *prometheus.Desc
	PressurePa       *prometheus.Desc
	SpecificHumidity *prometheus.Desc
	DewpointC        *prometheus.Desc
	HumidityGram     *prometheus.Desc
	HeatIndexC       *prometheus.Desc
	RawTemperatureC  *prometheus.Desc
	RawHumidityRH    *prometheus.Desc
	RawDewpointC     *prometheus.Desc
	RawHumidityGram  *prometheus.Desc
	TempOffset       float64
	HumidityOffset   float64
}

func NewSensorCollector(s Sensor, tempOffset float64, humidityOffset float64) *sensorCollector {
	labels := s.Labels()
	return &sensorCollector{
		Sensor: s,
		TemperatureC: prometheus.NewDesc(
			"sensor_temperature_celsius",
			"Temperature in Celsius",
			nil,
			labels,
		),
		HumidityRH: prometheus.NewDesc(
			"sensor_humidity_percent",
			"Relative humidity in percent",
			nil,
			labels,
		),
		PressurePa: prometheus.NewDesc(
			"sensor_pressure_pascal",
			"Air pressure in pascal (measured or configured)",
			nil,
			labels,
		),
		SpecificHumidity: prometheus.NewDesc(
			"sensor_specific_humidity_grams_per_gram",
			"Specific humidity in gram of water vapor per gram of air",
			nil,
			labels,
		),
		DewpointC: prometheus.NewDesc(
			"sensor_dewpoint_celsius",
			"Dewpoint temperature in Celsius",
			nil,
			labels,
		),
		HumidityGram: prometheus.NewDesc(
			"sensor_humidity_grams_per_cubic_meter",
			"Absolute humidity in gram / cubic meter",
			nil,
			labels,
		),
		HeatIndexC: prometheus.NewDesc(
			"sensor_heat_index_celsius",
			"Perceived temperature in Celsius",
			nil,
			labels,
		),
		Up: prometheus.NewDesc(
			"sensor_up",
			"Value is 1 if reading sensor date was successful, 0 otherwise.",
			nil,
			labels,
		),
		RawTemperatureC: prometheus.NewDesc(
			"sensor_raw_temperature_celsius",
			"Uncorrected temperature in Celsius",
			nil,
			labels,
		),
		RawHumidityRH: prometheus.NewDesc(
			"sensor_raw_humidity_percent",
			"Uncorrected relative humidity in percent",
			nil,
			labels,
		),
		RawDewpointC: prometheus.NewDesc(
			"sensor_raw_dewpoint_celsius",
			"Dewpoint temperature in Celsius derived from uncorrected readings",
			nil,
			labels,
		),
		RawHumidityGram: prometheus.NewDesc(
			"sensor_raw_humidity_grams_per_cubic_meter",
			"Uncorrected absolute humidity in gram / cubic meter",
			nil,
			labels,
		),
		TempOffset:     tempOffset,
		HumidityOffset: humidityOffset,
	}
}

func (collector *sensorCollector) Collect(ch chan<- prometheus.Metric) {
	readings, err := collector.Sensor.Poll()
	if err != nil {
		logrus.Print(err)
		ch <- prometheus.MustNewConstMetric(collector.Up, prometheus.GaugeValue, 0.0)
	} else {
		ch <- prometheus.MustNewConstMetric(collector.Up, prometheus.GaugeValue, 1)
	}
	if readings.temperature != nil {
		ch <- prometheus.MustNewConstMetric(
			collector.TemperatureC,
			prometheus.GaugeValue,
			*readings.temperature+collector.TempOffset,
		)
		ch <- prometheus.MustNewConstMetric(
			collector.RawTemperatureC,
			prometheus.GaugeValue,
			*readings.temperature,
		)
	}
	if readings.pressure != nil {
		ch <- prometheus.MustNewConstMetric(
			collector.PressurePa,
			prometheus.GaugeValue,
			*readings.pressure,
		)
	}
	if readings.humidity != nil {
		ch <- prometheus.MustNewConstMetric(
			collector.HumidityRH,
			prometheus.GaugeValue,
			*readings.humidity+collector.HumidityOffset,
		)
		ch <- prometheus.MustNewConstMetric(
			collector.RawHumidityRH,
			prometheus.GaugeValue,
			*readings.humidity,
		)
		if readings.temperature != nil {
			pressure := defaultPressurePa
			if readings.pressure != nil {
				pressure = *readings.pressure
			}
			observation := deriveObservation(
				*readings.temperature+collector.TempOffset,
				*readings.humidity+collector.HumidityOffset,
				pressure,
			)
			rawObservation := deriveObservation(
				*readings.temperature,
				*readings.humidity,
				pressure,
			)
			if finite(observation.SpecificHumidity) {
				ch <- prometheus.MustNewConstMetric(
					collector.SpecificHumidity,
					prometheus.GaugeValue,
					observation.SpecificHumidity,
				)
			}
			if finite(observation.DewpointC) {
				ch <- prometheus.MustNewConstMetric(
					collector.DewpointC,
					prometheus.GaugeValue,
					round64(observation.DewpointC, 2),
				)
			}
			if finite(rawObservation.DewpointC) {
				ch <- prometheus.MustNewConstMetric(
					collector.RawDewpointC,
					prometheus.GaugeValue,
					round64(rawObservation.DewpointC, 2),
				)
			}
			if finite(observation.AbsoluteHumidity) {
				ch <- prometheus.MustNewConstMetric(
					collector.HumidityGram,
					prometheus.GaugeValue,
					round64(observation.AbsoluteHumidity, 2),
				)
			}
			if finite(rawObservation.AbsoluteHumidity) {
				ch <- prometheus.MustNewConstMetric(
					collector.RawHumidityGram,
					prometheus.GaugeValue,
					round64(rawObservation.AbsoluteHumidity, 2),
				)
			}
			if finite(observation.HeatIndexC) {
				ch <- prometheus.MustNewConstMetric(
					collector.HeatIndexC,
					prometheus.GaugeValue,
					round64(observation.HeatIndexC, 2),
				)
			}
		}
	}
}

func (collector *sensorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.TemperatureC
	ch <- collector.HumidityRH
	ch <- collector.PressurePa
	ch <- collector.SpecificHumidity
	ch <- collector.DewpointC
	ch <- collector.HumidityGram
	ch <- collector.HeatIndexC
	ch <- collector.Up
	ch <- collector.RawTemperatureC
	ch <- collector.RawHumidityRH
	ch <- collector.RawDewpointC
	ch <- collector.RawHumidityGram
}

func parseSensors(args []string) ([]SensorFlags, error) {
	sensors := make([]SensorFlags, len(args))

	for i, arg := range args {
		sensor, err := parseSensorFlags(arg)
		if err != nil {
			return nil, fmt.Errorf("sensor %d '%s': %w", i+1, arg, err)
		}
		sensors[i] = sensor
	}

	return sensors, nil
}

func round64(value float64, precision int) float64 {
	return math.Round(value*math.Pow10(precision)) / math.Pow10(precision)
}

func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

func main() {
	listenAddress := pflag.String(
		"web.listen-address", defaultListenAddress,
		"Address on which to expose metrics and web interface.",
	)
	metricsPath := pflag.String(
		"web.telemetry-path", defaultTelemetryPath, "Path under which to expose metrics.",
	)
	configPath := pflag.String("config", "", "Path to an optional YAML configuration file.")
	influxHost := pflag.String(
		"influx.host", "", "InfluxDB server URL. Observation recording is enabled when set.",
	)
	influxTokenEnv := pflag.String(
		"influx.token-env", defaultInfluxTokenEnv,
		"Name of the environment variable holding the InfluxDB token.",
	)
	influxDatabase := pflag.String(
		"influx.database", defaultInfluxDatabase, "InfluxDB database to write observations to.",
	)
	influxMeasurement := pflag.String(
		"influx.measurement", defaultInfluxMeasurement,
		"Measurement name for recorded observations.",
	)
	influxInterval := pflag.Duration(
		"influx.interval", defaultInfluxInterval, "Interval between recorded observations.",
	)
	pflag.Parse()

	config := DefaultConfig()
	if *configPath != "" {
		var err error
		config, err = LoadConfig(*configPath)
		if err != nil {
			logrus.Fatal(err)
		}
	}
	if pflag.CommandLine.Changed("web.listen-address") {
		config.Web.ListenAddress = *listenAddress
	}
	if pflag.CommandLine.Changed("web.telemetry-path") {
		config.Web.TelemetryPath = *metricsPath
	}
	if pflag.CommandLine.Changed("influx.host") {
		config.Influx.Host = *influxHost
	}
	if pflag.CommandLine.Changed("influx.token-env") {
		config.Influx.TokenEnv = *influxTokenEnv
	}
	if pflag.CommandLine.Changed("influx.database") {
		config.Influx.Database = *influxDatabase
	}
	if pflag.CommandLine.Changed("influx.measurement") {
		config.Influx.Measurement = *influxMeasurement
	}
	if pflag.CommandLine.Changed("influx.interval") {
		config.Influx.Interval = *influxInterval
	}
	config.Sensors = append(config.Sensors, pflag.Args()...)

	sensors, err := parseSensors(config.Sensors)
	if err != nil {
		logrus.Fatal(err)
	}

	logger.ChangePackageLogLevel("bsbmp", logger.InfoLevel)
	logger.ChangePackageLogLevel("i2c", logger.InfoLevel)
	logger.ChangePackageLogLevel("sht3x", logger.InfoLevel)

	var recorded []recordedSensor
	for _, flags := range sensors {
		sensor, err := flags.NewSensor()
		if err != nil {
			logrus.Fatal(err)
		}
		collector := NewSensorCollector(sensor, flags.TempOffset, flags.HumidityOffset)
		prometheus.MustRegister(collector)
		recorded = append(recorded, recordedSensor{
			sensor:         sensor,
			tempOffset:     flags.TempOffset,
			humidityOffset: flags.HumidityOffset,
		})
	}
	prometheus.MustRegister(versioncollector.NewCollector("dewpoint_exporter"))

	var recorder *InfluxRecorder
	if config.Influx.Host != "" {
		recorder, err = NewInfluxRecorder(config.Influx, recorded)
		if err != nil {
			logrus.Fatal(err)
		}
		go recorder.Run()
	}

	logrus.Infof(
		"Serving Prometheus dewpoint exporter on %s%s - for example http://localhost%s%s",
		config.Web.ListenAddress,
		config.Web.TelemetryPath,
		config.Web.ListenAddress,
		config.Web.TelemetryPath,
	)
	http.Handle(config.Web.TelemetryPath, promhttp.Handler())
	err = http.ListenAndServe(config.Web.ListenAddress, nil)
	// logrus.Fatal exits without running defers, so close the recorder first.
	if recorder != nil {
		recorder.Close()
	}
	logrus.Fatal(err)
}
