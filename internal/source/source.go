// Package source provides access to watched entity readings with an
// abstraction for testing. The real implementation tracks retained entity
// state over MQTT; the fake allows scripting readings without a broker.
package source

// Reading is one raw observation of a watched entity: a bare state string
// plus an attribute map, as published by the entity's owner.
type Reading struct {
	EntityID   string
	State      string
	Attributes map[string]any
}

// Reader exposes the latest reading per entity and push notifications.
type Reader interface {
	// Get returns the latest known reading for the entity.
	// ok is false when no reading has been seen yet.
	Get(entityID string) (r Reading, ok bool)

	// Watch registers ch to receive every new reading of the entity.
	// Delivery is best-effort: a reading is dropped when ch is full.
	// The returned function cancels the registration.
	Watch(entityID string, ch chan<- Reading) (cancel func())

	// Close releases the underlying connection.
	Close() error
}
