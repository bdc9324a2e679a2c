package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Sensors       []SensorJSON `json:"sensors"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON is the JSON representation of one sensor.
type SensorJSON struct {
	Name         string   `json:"name"`
	EntityID     string   `json:"entity_id"`
	UniqueID     string   `json:"unique_id"`
	State        *float64 `json:"state"` // null while unavailable
	Available    bool     `json:"available"`
	Unit         string   `json:"unit_of_measurement,omitempty"`
	LastEmission string   `json:"last_emission,omitempty"`
	Emitted      int      `json:"emitted"`
	Suppressed   int      `json:"suppressed"`
	Unavailable  int      `json:"unavailable_transitions"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	SourcePrefix string `json:"source_prefix"`
	ConfigPath   string `json:"config_path,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	sensors := make([]SensorJSON, 0, len(snap.Sensors))
	for _, s := range snap.Sensors {
		sj := SensorJSON{
			Name:        s.Name,
			EntityID:    s.EntityID,
			UniqueID:    s.UniqueID,
			State:       s.Value,
			Available:   s.Available,
			Unit:        s.Unit,
			Emitted:     s.Counts.Emitted,
			Suppressed:  s.Counts.Suppressed,
			Unavailable: s.Counts.Unavailable,
		}
		if !s.LastEmission.IsZero() {
			sj.LastEmission = s.LastEmission.UTC().Format(time.RFC3339)
		}
		sensors = append(sensors, sj)
	}

	return StatusInner{
		Sensors:       sensors,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			SourcePrefix: snap.Config.SourcePrefix,
			ConfigPath:   snap.Config.ConfigPath,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
