// Package status provides a thread-safe status tracker for the
// denoise-sensor daemon. It is read by HTTP handlers and by the MQTT
// lifecycle events.
package status

import (
	"sync"
	"time"
)

// Counts tracks one sensor's decision outcomes since startup.
type Counts struct {
	Emitted     int // published numeric values (changes and heartbeats)
	Suppressed  int // samples absorbed by the delta/precision gates
	Unavailable int // published transitions into the unavailable state
}

// SensorStatus is a point-in-time view of one sensor.
type SensorStatus struct {
	Name         string
	EntityID     string
	UniqueID     string
	Unit         string
	Value        *float64 // nil until the first emission, and while unavailable
	Available    bool
	LastEmission time.Time // zero until the first emission
	Counts       Counts
}

// Config contains daemon configuration for display.
type Config struct {
	Broker       string
	HTTPAddr     string
	SourcePrefix string
	ConfigPath   string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Sensors       []SensorStatus // in configuration order
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	order   []string // unique IDs in configuration order
	sensors map[string]SensorStatus
	start   time.Time
	mqtt    bool
	cfg     Config
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		sensors: make(map[string]SensorStatus),
		start:   startTime,
		cfg:     cfg,
	}
}

// Register adds a sensor to the tracker. Called once per configured sensor
// at startup; display order follows registration order.
func (t *Tracker) Register(s SensorStatus) {
	t.mu.Lock()
	if _, exists := t.sensors[s.UniqueID]; !exists {
		t.order = append(t.order, s.UniqueID)
	}
	t.sensors[s.UniqueID] = s
	t.mu.Unlock()
}

// UpdateSensor replaces a sensor's status. Called from the sensor's
// pipeline loop; unknown unique IDs are ignored.
func (t *Tracker) UpdateSensor(s SensorStatus) {
	t.mu.Lock()
	if _, exists := t.sensors[s.UniqueID]; exists {
		t.sensors[s.UniqueID] = s
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.mqtt = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	snap := Snapshot{
		Sensors:       make([]SensorStatus, 0, len(t.order)),
		StartTime:     t.start,
		MQTTConnected: t.mqtt,
		Config:        t.cfg,
	}
	for _, id := range t.order {
		snap.Sensors = append(snap.Sensors, t.sensors[id])
	}
	t.mu.RUnlock()
	snap.Now = time.Now()
	return snap
}
