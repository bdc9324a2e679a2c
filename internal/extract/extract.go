// Package extract maps raw source readings to numeric samples in the
// engine's working unit. Extraction rules depend on the source's domain:
// weather sources carry the value in a "temperature" attribute, climate
// sources in "current_temperature", everything else in the bare state.
package extract

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/sweeney/denoise-sensor/internal/source"
)

// Kind classifies the watched entity's domain. It is selected once from the
// entity ID and fixes which field of a reading carries the value.
type Kind int

const (
	KindGeneric Kind = iota
	KindWeather
	KindClimate
)

// KindOf returns the Kind for an entity ID such as "weather.home".
func KindOf(entityID string) Kind {
	domain, _, _ := strings.Cut(entityID, ".")
	switch domain {
	case "weather":
		return KindWeather
	case "climate", "water_heater":
		return KindClimate
	default:
		return KindGeneric
	}
}

// Attribute keys read from source readings.
const (
	attrTemperature        = "temperature"
	attrCurrentTemperature = "current_temperature"
	attrUnitOfMeasurement  = "unit_of_measurement"
	attrDeviceClass        = "device_class"
	attrIcon               = "icon"
)

// hasState reports whether a raw state carries a usable value. The literal
// tokens "unknown", "unavailable" and "None" mean the source has none.
func hasState(s string) bool {
	switch s {
	case "", "unknown", "unavailable", "None":
		return false
	}
	return true
}

// Extractor converts readings of one entity into numeric samples.
//
// Unit, device class and icon metadata only arrive with a reading, so the
// extractor initializes itself lazily from the first reading it sees and
// keeps that identity for its lifetime.
type Extractor struct {
	kind       Kind
	systemUnit string // target unit for temperature-mode sources

	initialized bool
	tempMode    bool
	srcUnit     string
	unit        string // unit of the published value
	deviceClass string
	icon        string
}

// New creates an extractor for the given entity. systemUnit is the unit
// temperature values are converted to (e.g. "°C").
func New(entityID, systemUnit string) *Extractor {
	return &Extractor{kind: KindOf(entityID), systemUnit: systemUnit}
}

// Value extracts the numeric sample from a reading. ok is false when the
// reading is unavailable or its state cannot be parsed as a number.
func (e *Extractor) Value(r source.Reading) (value float64, ok bool) {
	if !e.initialized {
		e.init(r)
	}

	raw, ok := e.rawState(r)
	if !ok {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		log.Printf("extract: could not convert value %q of %q to a number", raw, r.EntityID)
		return 0, false
	}

	if e.tempMode {
		v = convertTemperature(v, e.srcUnit, e.unit)
	}
	return v, true
}

// rawState picks the field carrying the value for this source kind.
func (e *Extractor) rawState(r source.Reading) (string, bool) {
	var raw string
	switch e.kind {
	case KindWeather:
		raw = attrString(r.Attributes, attrTemperature)
	case KindClimate:
		raw = attrString(r.Attributes, attrCurrentTemperature)
	default:
		raw = r.State
	}
	if !hasState(raw) {
		return "", false
	}
	return raw, true
}

// init fixes the extractor's identity from the first reading.
// Weather and climate sources are always temperature-bearing; generic
// sources are temperature-bearing only when their unit says so, and
// otherwise pass their own unit and metadata through.
func (e *Extractor) init(r source.Reading) {
	e.initialized = true
	e.tempMode = true
	e.unit = e.systemUnit
	e.srcUnit = e.systemUnit
	e.deviceClass = "temperature"
	e.icon = "mdi:thermometer"

	if e.kind != KindGeneric {
		return
	}

	e.srcUnit = attrString(r.Attributes, attrUnitOfMeasurement)
	e.tempMode = isTemperatureUnit(e.srcUnit)
	if !e.tempMode {
		e.unit = e.srcUnit
		e.deviceClass = attrString(r.Attributes, attrDeviceClass)
		e.icon = attrString(r.Attributes, attrIcon)
	}
}

// Unit returns the unit of the published value. Empty until the first
// reading for generic non-temperature sources.
func (e *Extractor) Unit() string {
	return e.unit
}

// DeviceClass returns the device class of the published sensor.
func (e *Extractor) DeviceClass() string {
	return e.deviceClass
}

// Icon returns the frontend icon of the published sensor.
func (e *Extractor) Icon() string {
	return e.icon
}

// attrString renders an attribute value as a string. JSON decoding yields
// float64 for all numbers, so numeric attributes are formatted without a
// forced exponent or trailing zeros.
func attrString(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
