package source

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// statePayload is the JSON document entities publish on their state topic.
// A payload that is not valid JSON is treated as a bare state string, so
// plain sensors can publish "21.5" directly.
type statePayload struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// RealReader tracks entity readings from an MQTT broker. Each entity's
// state lives retained on <prefix>/<entity_id>/state.
type RealReader struct {
	client paho.Client
	prefix string

	mu       sync.Mutex
	latest   map[string]Reading
	watchers map[int]watcher
	nextID   int
}

type watcher struct {
	entityID string
	ch       chan<- Reading
}

// NewRealReader connects to the broker and subscribes to all entity state
// under the given topic prefix.
func NewRealReader(broker, prefix string) (*RealReader, error) {
	r := &RealReader{
		prefix:   prefix,
		latest:   make(map[string]Reading),
		watchers: make(map[int]watcher),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("denoise-sensor-source").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			// Resubscribe on every (re)connect; subscriptions are not
			// persisted across clean sessions.
			c.Subscribe(prefix+"/+/state", 0, r.handleMessage)
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	r.client = client
	return r, nil
}

func (r *RealReader) handleMessage(_ paho.Client, msg paho.Message) {
	entityID, ok := r.entityIDFromTopic(msg.Topic())
	if !ok {
		return
	}

	reading := Reading{EntityID: entityID}
	var payload statePayload
	if err := json.Unmarshal(msg.Payload(), &payload); err == nil && payload.State != "" {
		reading.State = payload.State
		reading.Attributes = payload.Attributes
	} else {
		reading.State = strings.TrimSpace(string(msg.Payload()))
	}

	r.mu.Lock()
	r.latest[entityID] = reading
	var targets []chan<- Reading
	for _, w := range r.watchers {
		if w.entityID == entityID {
			targets = append(targets, w.ch)
		}
	}
	r.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- reading:
		default:
			// Slow consumer: drop rather than block the MQTT callback.
		}
	}
}

// entityIDFromTopic extracts the entity ID from <prefix>/<entity_id>/state.
func (r *RealReader) entityIDFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, r.prefix+"/")
	if !ok {
		return "", false
	}
	entityID, ok := strings.CutSuffix(rest, "/state")
	if !ok || entityID == "" || strings.Contains(entityID, "/") {
		return "", false
	}
	return entityID, true
}

// Get returns the latest known reading for the entity.
func (r *RealReader) Get(entityID string) (Reading, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reading, ok := r.latest[entityID]
	return reading, ok
}

// Watch registers ch for readings of the entity.
func (r *RealReader) Watch(entityID string, ch chan<- Reading) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.watchers[id] = watcher{entityID: entityID, ch: ch}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.watchers, id)
		r.mu.Unlock()
	}
}

// Close disconnects from the broker.
func (r *RealReader) Close() error {
	r.client.Disconnect(1000) // 1 second timeout
	return nil
}
