package mqtt

import "log"

// outboxMsg stores a serialized MQTT message for replay after reconnection.
type outboxMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO holding messages published while the
// broker connection is down. When full, the oldest message is dropped:
// for retained state topics only the newest value matters anyway.
// Not safe for concurrent use; caller must synchronize.
type outbox struct {
	buf      []outboxMsg
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any message was dropped since last drain
}

func newOutbox(capacity int) *outbox {
	return &outbox{
		buf:      make([]outboxMsg, capacity),
		capacity: capacity,
	}
}

func (o *outbox) add(msg outboxMsg) {
	if o.count == o.capacity {
		if !o.overflow {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", o.capacity)
			o.overflow = true
		}
		// Overwrite oldest: head is already pointing at it.
		o.buf[o.head] = msg
		o.head = (o.head + 1) % o.capacity
		// count stays at capacity
		return
	}
	o.buf[o.head] = msg
	o.head = (o.head + 1) % o.capacity
	o.count++
}

// drain returns all buffered messages in FIFO order and empties the outbox.
func (o *outbox) drain() []outboxMsg {
	if o.count == 0 {
		return nil
	}

	result := make([]outboxMsg, o.count)
	// Oldest item is at (head - count) mod capacity.
	start := (o.head - o.count + o.capacity) % o.capacity
	for i := 0; i < o.count; i++ {
		result[i] = o.buf[(start+i)%o.capacity]
	}

	o.count = 0
	o.head = 0
	o.overflow = false
	return result
}

func (o *outbox) size() int {
	return o.count
}
