// Package session runs the mood decision loop and owns the session state.
package session

import (
	"sync"

	"github.com/jmylchreest/moodify/internal/mood"
)

// Decider debounces mood changes. A new mood is committed only when it
// differs from the last committed mood and its confidence strictly
// exceeds the threshold.
type Decider struct {
	mu        sync.Mutex
	last      mood.Mood
	threshold float64
}

// NewDecider creates a decider with no committed mood.
func NewDecider(threshold float64) *Decider {
	return &Decider{threshold: threshold}
}

// Threshold returns the change threshold.
func (d *Decider) Threshold() float64 {
	return d.threshold
}

// Last returns the committed mood, if any.
func (d *Decider) Last() (mood.Mood, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.last != ""
}

// Observe applies the commit rule and reports whether obs was committed.
func (d *Decider) Observe(obs mood.Observation) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if obs.Mood == d.last || obs.Confidence <= d.threshold {
		return false
	}
	d.last = obs.Mood
	return true
}

// Force sets the committed mood regardless of confidence, as a manual
// selection does.
func (d *Decider) Force(m mood.Mood) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = m
}

// Reset clears the committed mood.
func (d *Decider) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = ""
}
