// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// TopicPrefix is the root of all topics published by the daemon.
const TopicPrefix = "denoise/sensor"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = TopicPrefix + "/system"

// StateTopic returns the retained state topic for a sensor.
func StateTopic(uniqueID string) string {
	return TopicPrefix + "/" + uniqueID + "/state"
}

// Publisher publishes sensor state and system events to MQTT.
type Publisher interface {
	// Publish sends a denoised sensor state to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event StateEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// StateEvent is one published sensor value.
type StateEvent struct {
	EntityID    string // watched source entity
	Name        string
	UniqueID    string
	Timestamp   time.Time
	Value       *float64 // nil = unavailable
	Unit        string
	DeviceClass string
	Icon        string
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the sensor state message payload structure.
type Payload struct {
	Sensor SensorPayload `json:"sensor"`
}

// SensorPayload contains the published sensor state.
type SensorPayload struct {
	Timestamp   string   `json:"timestamp"`
	EntityID    string   `json:"entity_id"`
	Name        string   `json:"name,omitempty"`
	State       *float64 `json:"state"` // null when unavailable
	Available   bool     `json:"available"`
	Unit        string   `json:"unit_of_measurement,omitempty"`
	DeviceClass string   `json:"device_class,omitempty"`
	Icon        string   `json:"icon,omitempty"`
}

// FormatPayload creates the JSON payload for a sensor state event.
func FormatPayload(event StateEvent) ([]byte, error) {
	payload := Payload{
		Sensor: SensorPayload{
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
			EntityID:    event.EntityID,
			Name:        event.Name,
			State:       event.Value,
			Available:   event.Value != nil,
			Unit:        event.Unit,
			DeviceClass: event.DeviceClass,
			Icon:        event.Icon,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
