package mqtt

import "testing"

func TestOutboxEmptyDrain(t *testing.T) {
	o := newOutbox(10)
	got := o.drain()
	if got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestOutboxAddAndDrain(t *testing.T) {
	o := newOutbox(10)
	for i := 0; i < 5; i++ {
		o.add(outboxMsg{topic: "t", payload: []byte{byte(i)}})
	}
	if o.size() != 5 {
		t.Errorf("size: got %d, want 5", o.size())
	}

	got := o.drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}

	// Second drain should be empty.
	if got := o.drain(); got != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got))
	}
}

func TestOutboxOverflowDropsOldest(t *testing.T) {
	capacity := 5
	o := newOutbox(capacity)

	// Add capacity+3 items (0..7); the outbox keeps the most recent 5 (3..7).
	for i := 0; i < capacity+3; i++ {
		o.add(outboxMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got := o.drain()
	if len(got) != capacity {
		t.Fatalf("expected %d items, got %d", capacity, len(got))
	}
	for i := 0; i < capacity; i++ {
		want := byte(i + 3) // oldest 3 were dropped
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}
}

func TestOutboxMultipleCycles(t *testing.T) {
	o := newOutbox(5)

	for cycle := 0; cycle < 3; cycle++ {
		for i := 0; i < 4; i++ {
			o.add(outboxMsg{topic: "t", payload: []byte{byte(cycle*10 + i)}})
		}
		got := o.drain()
		if len(got) != 4 {
			t.Fatalf("cycle %d: expected 4 items, got %d", cycle, len(got))
		}
		for i := 0; i < 4; i++ {
			want := byte(cycle*10 + i)
			if got[i].payload[0] != want {
				t.Errorf("cycle %d item %d: expected %d, got %d", cycle, i, want, got[i].payload[0])
			}
		}
	}
}

func TestOutboxPreservesMessageFields(t *testing.T) {
	o := newOutbox(2)
	o.add(outboxMsg{topic: "a/b", payload: []byte("x"), qos: 1, retained: true})

	got := o.drain()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	m := got[0]
	if m.topic != "a/b" || string(m.payload) != "x" || m.qos != 1 || !m.retained {
		t.Errorf("message fields not preserved: %+v", m)
	}
}
