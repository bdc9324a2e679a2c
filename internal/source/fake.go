package source

import "sync"

// FakeReader is a test double that serves scripted readings.
type FakeReader struct {
	mu       sync.Mutex
	latest   map[string]Reading
	watchers map[int]watcher
	nextID   int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeReader creates an empty FakeReader.
func NewFakeReader() *FakeReader {
	return &FakeReader{
		latest:   make(map[string]Reading),
		watchers: make(map[int]watcher),
	}
}

// Set stores a reading and delivers it to registered watchers, simulating
// a state change arriving from the broker. Delivery blocks until every
// watcher has accepted the reading, so tests stay deterministic.
func (f *FakeReader) Set(r Reading) {
	f.mu.Lock()
	f.latest[r.EntityID] = r
	var targets []chan<- Reading
	for _, w := range f.watchers {
		if w.entityID == r.EntityID {
			targets = append(targets, w.ch)
		}
	}
	f.mu.Unlock()

	for _, ch := range targets {
		ch <- r
	}
}

// Get returns the latest scripted reading for the entity.
func (f *FakeReader) Get(entityID string) (Reading, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.latest[entityID]
	return r, ok
}

// Watch registers ch for readings of the entity.
func (f *FakeReader) Watch(entityID string, ch chan<- Reading) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.watchers[id] = watcher{entityID: entityID, ch: ch}
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.watchers, id)
		f.mu.Unlock()
	}
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
