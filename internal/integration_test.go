package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/denoise-sensor/internal/extract"
	"github.com/sweeney/denoise-sensor/internal/filter"
	"github.com/sweeney/denoise-sensor/internal/mqtt"
	"github.com/sweeney/denoise-sensor/internal/source"
	"github.com/sweeney/denoise-sensor/internal/status"
)

// pipeline wires a fake source, extractor, engine and fake publisher the way
// the per-sensor loop does, driven manually for deterministic tests.
type pipeline struct {
	entityID  string
	reader    *source.FakeReader
	extractor *extract.Extractor
	engine    *filter.Engine
	publisher *mqtt.FakePublisher
}

func newPipeline(entityID string, cfg filter.Config) *pipeline {
	return &pipeline{
		entityID:  entityID,
		reader:    source.NewFakeReader(),
		extractor: extract.New(entityID, extract.UnitCelsius),
		engine:    filter.NewEngine(cfg),
		publisher: mqtt.NewFakePublisher(),
	}
}

// step feeds the latest reading through the pipeline at the given time.
func (p *pipeline) step(t *testing.T, now time.Time, timerTick bool) {
	t.Helper()
	r, ok := p.reader.Get(p.entityID)
	if !ok {
		t.Fatalf("no reading for %s", p.entityID)
	}
	value, valid := p.extractor.Value(r)
	outcome := p.engine.Ingest(filter.Input{Value: value, Valid: valid, Time: now, TimerTick: timerTick})
	if !outcome.Emit {
		return
	}
	event := mqtt.StateEvent{
		EntityID:  p.entityID,
		UniqueID:  p.entityID,
		Timestamp: now,
		Value:     outcome.Value,
		Unit:      p.extractor.Unit(),
	}
	if err := p.publisher.Publish(event); err != nil {
		t.Fatalf("publish error: %v", err)
	}
}

// TestIntegrationFullFlow covers the complete flow from source readings to
// published payloads: cold start, suppression, delta crossing, heartbeat.
func TestIntegrationFullFlow(t *testing.T) {
	upd := 5 * time.Minute
	p := newPipeline("weather.home", filter.Config{ValueDelta: 0.5, Precision: 1, UpdateInterval: &upd})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Cold start publishes.
	p.reader.Set(source.Reading{
		EntityID:   "weather.home",
		State:      "cloudy",
		Attributes: map[string]any{"temperature": 20.02},
	})
	p.step(t, start, false)

	// Sub-delta change is suppressed.
	p.reader.Set(source.Reading{
		EntityID:   "weather.home",
		State:      "cloudy",
		Attributes: map[string]any{"temperature": 20.3},
	})
	p.step(t, start.Add(10*time.Second), false)

	// Delta-crossing change publishes.
	p.reader.Set(source.Reading{
		EntityID:   "weather.home",
		State:      "cloudy",
		Attributes: map[string]any{"temperature": 20.8},
	})
	p.step(t, start.Add(20*time.Second), false)

	// Heartbeat tick republishes the unchanged value once due.
	p.step(t, start.Add(20*time.Second+upd), true)

	events := p.publisher.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	wantValues := []float64{20.0, 20.8, 20.8}
	for i, want := range wantValues {
		if events[i].Value == nil || *events[i].Value != want {
			t.Errorf("event %d: got %v, want %v", i, events[i].Value, want)
		}
	}

	// Every payload is well-formed JSON with the expected shell.
	for i, payload := range p.publisher.Payloads() {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Errorf("payload %d: invalid JSON: %v", i, err)
			continue
		}
		if parsed.Sensor.Timestamp == "" {
			t.Errorf("payload %d: missing timestamp", i)
		}
		if parsed.Sensor.EntityID != "weather.home" {
			t.Errorf("payload %d: entity_id %q", i, parsed.Sensor.EntityID)
		}
		if parsed.Sensor.Unit != extract.UnitCelsius {
			t.Errorf("payload %d: unit %q", i, parsed.Sensor.Unit)
		}
	}
}

// TestIntegrationNoisySignalStaysQuiet verifies a jittering signal inside the
// delta band publishes exactly once.
func TestIntegrationNoisySignalStaysQuiet(t *testing.T) {
	p := newPipeline("sensor.temp", filter.Config{ValueDelta: 0.5, Precision: 1})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	states := []string{"20.0", "20.1", "19.9", "20.2", "19.8", "20.0"}
	for i, s := range states {
		p.reader.Set(source.Reading{EntityID: "sensor.temp", State: s})
		p.step(t, start.Add(time.Duration(i)*time.Second), false)
	}

	if got := p.publisher.Events(); len(got) != 1 {
		t.Fatalf("expected 1 event for jitter, got %d", len(got))
	}
}

// TestIntegrationUnavailableRoundTrip verifies unavailable transitions are
// always published and recovery publishes unconditionally.
func TestIntegrationUnavailableRoundTrip(t *testing.T) {
	p := newPipeline("sensor.temp", filter.Config{Precision: 1})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	states := []string{"21.0", "unavailable", "unknown", "21.0"}
	for i, s := range states {
		p.reader.Set(source.Reading{EntityID: "sensor.temp", State: s})
		p.step(t, start.Add(time.Duration(i)*time.Second), false)
	}

	events := p.publisher.Events()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].Value == nil || *events[0].Value != 21.0 {
		t.Errorf("event 0: got %v, want 21.0", events[0].Value)
	}
	if events[1].Value != nil || events[2].Value != nil {
		t.Error("unavailable transitions should carry nil values")
	}
	if events[3].Value == nil || *events[3].Value != 21.0 {
		t.Errorf("recovery: got %v, want 21.0", events[3].Value)
	}

	// The unavailable payload carries a null state.
	var parsed mqtt.Payload
	if err := json.Unmarshal(p.publisher.Payloads()[1], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Sensor.State != nil {
		t.Errorf("state: got %v, want null", *parsed.Sensor.State)
	}
	if parsed.Sensor.Available {
		t.Error("available: got true, want false")
	}
}

// TestIntegrationAveragingAbsorbsSpike verifies a short spike that would
// cross the delta raw is absorbed by the rolling average.
func TestIntegrationAveragingAbsorbsSpike(t *testing.T) {
	window := time.Minute
	p := newPipeline("sensor.temp", filter.Config{ValueDelta: 1.0, Precision: 1, AverageWindow: &window})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	p.reader.Set(source.Reading{EntityID: "sensor.temp", State: "20.0"})
	p.step(t, start, false)

	// Raw 21.5 crosses the delta; the average 20.75 does not.
	p.reader.Set(source.Reading{EntityID: "sensor.temp", State: "21.5"})
	p.step(t, start.Add(30*time.Second), false)

	p.reader.Set(source.Reading{EntityID: "sensor.temp", State: "20.0"})
	p.step(t, start.Add(40*time.Second), false)

	if got := p.publisher.Events(); len(got) != 1 {
		t.Fatalf("expected the spike to be absorbed, got %d events", len(got))
	}
}

// TestIntegrationPayloadFormat verifies the exact JSON structure.
func TestIntegrationPayloadFormat(t *testing.T) {
	v := 20.1
	event := mqtt.StateEvent{
		EntityID:    "weather.home",
		Name:        "Outside temperature",
		UniqueID:    "outside-temp",
		Timestamp:   time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Value:       &v,
		Unit:        "°C",
		DeviceClass: "temperature",
		Icon:        "mdi:thermometer",
	}

	publisher := mqtt.NewFakePublisher()
	if err := publisher.Publish(event); err != nil {
		t.Fatalf("publish error: %v", err)
	}

	expected := `{"sensor":{"timestamp":"2026-02-02T22:18:12Z","entity_id":"weather.home","name":"Outside temperature","state":20.1,"available":true,"unit_of_measurement":"°C","device_class":"temperature","icon":"mdi:thermometer"}}`

	if got := string(publisher.Payloads()[0]); got != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, expected)
	}
}

// TestIntegrationUnavailablePayloadFormat verifies the exact JSON structure
// when the sensor is unavailable.
func TestIntegrationUnavailablePayloadFormat(t *testing.T) {
	event := mqtt.StateEvent{
		EntityID:  "sensor.x",
		UniqueID:  "x",
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
	}

	publisher := mqtt.NewFakePublisher()
	if err := publisher.Publish(event); err != nil {
		t.Fatalf("publish error: %v", err)
	}

	expected := `{"sensor":{"timestamp":"2026-02-03T10:30:45Z","entity_id":"sensor.x","state":null,"available":false}}`

	if got := string(publisher.Payloads()[0]); got != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, expected)
	}
}

// TestIntegrationShutdownEventSIGTERM verifies shutdown event on SIGTERM.
func TestIntegrationShutdownEventSIGTERM(t *testing.T) {
	publisher := mqtt.NewFakePublisher()

	event := mqtt.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 15, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}
	if err := publisher.PublishSystem(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := publisher.SystemEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(events))
	}
	if events[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN event, got %s", events[0].Event)
	}
	if events[0].Reason != "SIGTERM" {
		t.Errorf("expected SIGTERM reason, got %s", events[0].Reason)
	}
}

// TestIntegrationShutdownPayloadFormat verifies the exact JSON structure for
// plain shutdown events.
func TestIntegrationShutdownPayloadFormat(t *testing.T) {
	event := mqtt.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	data, err := mqtt.FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("FormatSystemPayload error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(data) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", data, expected)
	}
}

// TestIntegrationStartupStatusEvent verifies the startup event carries the
// full status snapshot built from the tracker.
func TestIntegrationStartupStatusEvent(t *testing.T) {
	start := time.Date(2026, 2, 3, 19, 5, 51, 0, time.UTC)
	tracker := status.NewTracker(start, status.Config{
		Broker:       "tcp://192.168.1.200:1883",
		HTTPAddr:     ":8080",
		SourcePrefix: "entities",
	})
	tracker.Register(status.SensorStatus{Name: "Outside", EntityID: "weather.home", UniqueID: "outside-temp"})
	tracker.SetMQTTConnected(true)

	snap := tracker.Snapshot()
	publisher := mqtt.NewFakePublisher()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := mqtt.FormatSystemPayload(publisher.SystemEvents()[0])
	if err != nil {
		t.Fatalf("FormatSystemPayload error: %v", err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "STARTUP" {
		t.Errorf("event: got %q, want STARTUP", parsed.Status.Event)
	}
	if len(parsed.Status.Sensors) != 1 {
		t.Fatalf("expected 1 sensor, got %d", len(parsed.Status.Sensors))
	}
	if parsed.Status.Sensors[0].EntityID != "weather.home" {
		t.Errorf("entity_id: got %q", parsed.Status.Sensors[0].EntityID)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("mqtt.connected: got false, want true")
	}
	if parsed.Status.Config.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("config.broker: got %q", parsed.Status.Config.Broker)
	}
}

// TestIntegrationStartupThenShutdown verifies the full lifecycle ordering.
func TestIntegrationStartupThenShutdown(t *testing.T) {
	publisher := mqtt.NewFakePublisher()

	startup := mqtt.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 19, 5, 51, 0, time.UTC),
		Event:     "STARTUP",
	}
	if err := publisher.PublishSystem(startup); err != nil {
		t.Fatalf("startup publish error: %v", err)
	}

	v := 20.5
	state := mqtt.StateEvent{
		EntityID:  "weather.home",
		UniqueID:  "outside-temp",
		Timestamp: time.Date(2026, 2, 3, 19, 6, 0, 0, time.UTC),
		Value:     &v,
	}
	if err := publisher.Publish(state); err != nil {
		t.Fatalf("state publish error: %v", err)
	}

	shutdown := mqtt.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 19, 10, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}
	if err := publisher.PublishSystem(shutdown); err != nil {
		t.Fatalf("shutdown publish error: %v", err)
	}

	systemEvents := publisher.SystemEvents()
	if len(systemEvents) != 2 {
		t.Fatalf("expected 2 system events, got %d", len(systemEvents))
	}
	if len(publisher.Events()) != 1 {
		t.Fatalf("expected 1 state event, got %d", len(publisher.Events()))
	}
	if systemEvents[0].Event != "STARTUP" {
		t.Errorf("first system event should be STARTUP, got %s", systemEvents[0].Event)
	}
	if systemEvents[1].Event != "SHUTDOWN" {
		t.Errorf("second system event should be SHUTDOWN, got %s", systemEvents[1].Event)
	}
	if systemEvents[1].Reason != "SIGTERM" {
		t.Errorf("shutdown reason: got %s, want SIGTERM", systemEvents[1].Reason)
	}
}

// TestIntegrationShutdownPublishFailureLogsButContinues verifies publish
// errors during shutdown are surfaced, not fatal.
func TestIntegrationShutdownPublishFailureLogsButContinues(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	publisher.SetPublishSystemError(errors.New("broker disconnected"))

	event := mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	if err := publisher.PublishSystem(event); err == nil {
		t.Error("expected error from publish")
	}
	if len(publisher.SystemEvents()) != 0 {
		t.Errorf("expected no system events on error, got %d", len(publisher.SystemEvents()))
	}
}

// TestIntegrationPublishFailureDoesNotLoseState verifies the pipeline keeps
// working after a failed publish.
func TestIntegrationPublishFailureDoesNotLoseState(t *testing.T) {
	p := newPipeline("sensor.temp", filter.Config{ValueDelta: 0.5, Precision: 1})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	p.publisher.SetPublishError(errors.New("broker gone"))
	p.reader.Set(source.Reading{EntityID: "sensor.temp", State: "20.0"})

	r, _ := p.reader.Get("sensor.temp")
	value, valid := p.extractor.Value(r)
	outcome := p.engine.Ingest(filter.Input{Value: value, Valid: valid, Time: start})
	if !outcome.Emit {
		t.Fatal("cold start should emit")
	}
	if err := p.publisher.Publish(mqtt.StateEvent{EntityID: "sensor.temp", Value: outcome.Value}); err == nil {
		t.Error("expected publish error")
	}

	// Next delta-crossing reading still goes through.
	p.publisher.SetPublishError(nil)
	p.reader.Set(source.Reading{EntityID: "sensor.temp", State: "21.0"})
	p.step(t, start.Add(time.Second), false)

	events := p.publisher.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event after recovery, got %d", len(events))
	}
	if *events[0].Value != 21.0 {
		t.Errorf("got %v, want 21.0", *events[0].Value)
	}
}
