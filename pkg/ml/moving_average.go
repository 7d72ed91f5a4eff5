package ml

// MovingAverage is a fixed-window simple moving average
type MovingAverage struct {
	window []float64
	next   int
	count  int
	sum    float64
}

// NewMovingAverage creates a moving average over the last size values
func NewMovingAverage(size int) *MovingAverage {
	if size < 1 {
		size = 1
	}
	return &MovingAverage{window: make([]float64, size)}
}

// Add pushes a value, evicting the oldest one once the window is full.
// Non-finite values are dropped.
func (m *MovingAverage) Add(v float64) {
	if !isFinite(v) {
		return
	}
	if m.count == len(m.window) {
		m.sum -= m.window[m.next]
	} else {
		m.count++
	}
	m.window[m.next] = v
	m.sum += v
	m.next = (m.next + 1) % len(m.window)
}

// Value returns the current average, 0 when empty
func (m *MovingAverage) Value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// Count returns how many values are in the window
func (m *MovingAverage) Count() int {
	return m.count
}

// Full reports whether the window has reached its capacity
func (m *MovingAverage) Full() bool {
	return m.count == len(m.window)
}
