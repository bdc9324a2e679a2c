package mqtt

import "sync"

// FakePublisher records published events for test assertions.
// Safe for concurrent use so pipeline tests can publish from goroutines.
type FakePublisher struct {
	mu sync.Mutex

	events       []StateEvent
	payloads     [][]byte
	systemEvents []SystemEvent

	publishError       error
	publishSystemError error
	closed             bool
	connected          bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the sensor state event.
func (f *FakePublisher) Publish(event StateEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishError != nil {
		return f.publishError
	}

	f.events = append(f.events, event)

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.payloads = append(f.payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishSystemError != nil {
		return f.publishSystemError
	}

	f.systemEvents = append(f.systemEvents, event)
	return nil
}

// Events returns a copy of the recorded state events.
func (f *FakePublisher) Events() []StateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StateEvent(nil), f.events...)
}

// Payloads returns a copy of the recorded state payloads.
func (f *FakePublisher) Payloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...)
}

// SystemEvents returns a copy of the recorded system events.
func (f *FakePublisher) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.systemEvents...)
}

// SetPublishError makes subsequent Publish calls return err (nil to clear).
func (f *FakePublisher) SetPublishError(err error) {
	f.mu.Lock()
	f.publishError = err
	f.mu.Unlock()
}

// SetPublishSystemError makes subsequent PublishSystem calls return err.
func (f *FakePublisher) SetPublishSystemError(err error) {
	f.mu.Lock()
	f.publishSystemError = err
	f.mu.Unlock()
}

// SetConnected controls the return value of IsConnected.
func (f *FakePublisher) SetConnected(connected bool) {
	f.mu.Lock()
	f.connected = connected
	f.mu.Unlock()
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Reset clears recorded events and error settings.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
	f.payloads = nil
	f.systemEvents = nil
	f.closed = false
	f.publishError = nil
	f.publishSystemError = nil
	f.connected = false
}
