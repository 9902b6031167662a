package core

import (
	"sort"
	"sync"
)

const AVG_COUNT uint8 = 30

// MetricsState holds the counters of a single label (typically a resource kind).
type MetricsState struct {
	Hits            uint64
	Misses          uint64
	Failures        uint64
	BuildAVGCounter uint8
	MStimes         [AVG_COUNT]float64
	MSavg           float64
	MSsamples       uint8
}

// Metrics tracks cache hits, misses, failures and a rolling average of
// construction times per label. It is safe for concurrent use.
type Metrics struct {
	mu     sync.Mutex
	states map[string]*MetricsState
}

func NewMetrics() *Metrics {
	return &Metrics{
		states: make(map[string]*MetricsState),
	}
}

func (m *Metrics) state(label string) *MetricsState {
	s, ok := m.states[label]
	if !ok {
		s = &MetricsState{}
		m.states[label] = s
	}
	return s
}

func (m *Metrics) RecordHit(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state(label).Hits++
}

func (m *Metrics) RecordFailure(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state(label).Failures++
}

// RecordMiss counts a fresh construction and feeds its duration into the
// rolling average window.
func (m *Metrics) RecordMiss(label string, buildMS float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(label)
	s.Misses++

	s.MStimes[s.BuildAVGCounter] = buildMS
	if s.MSsamples < AVG_COUNT {
		s.MSsamples++
	}
	s.BuildAVGCounter++
	s.BuildAVGCounter %= AVG_COUNT

	total := 0.0
	for i := uint8(0); i < s.MSsamples; i++ {
		total += s.MStimes[i]
	}
	s.MSavg = total / float64(s.MSsamples)
}

// Snapshot returns a copy of the state of a label.
func (m *Metrics) Snapshot(label string) MetricsState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[label]; ok {
		return *s
	}
	return MetricsState{}
}

// Labels returns every label seen so far, sorted.
func (m *Metrics) Labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	labels := make([]string, 0, len(m.states))
	for l := range m.states {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]*MetricsState)
}
