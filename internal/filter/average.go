package filter

import "time"

// timedSample is one buffered (timestamp, value) pair.
type timedSample struct {
	t time.Time
	v float64
}

// rollingAverage maintains a time-windowed arithmetic mean of recent
// samples. Samples arrive in non-decreasing time order, so the buffer is
// always time-sorted and eviction from the front is sufficient.
// Not safe for concurrent use; caller must synchronize.
type rollingAverage struct {
	window time.Duration
	buf    []timedSample
}

func newRollingAverage(window time.Duration) *rollingAverage {
	return &rollingAverage{window: window}
}

// update evicts samples strictly older than the window, appends (now, v)
// and returns the mean of everything still buffered. An entry exactly at
// the boundary age is retained. The buffer holds at least the sample just
// inserted, so the mean is always defined.
func (r *rollingAverage) update(now time.Time, v float64) float64 {
	evict := 0
	for evict < len(r.buf) && now.Sub(r.buf[evict].t) > r.window {
		evict++
	}
	if evict > 0 {
		r.buf = append(r.buf[:0], r.buf[evict:]...)
	}
	r.buf = append(r.buf, timedSample{t: now, v: v})

	sum := 0.0
	for _, s := range r.buf {
		sum += s.v
	}
	return sum / float64(len(r.buf))
}

// len reports the number of buffered samples.
func (r *rollingAverage) len() int {
	return len(r.buf)
}
