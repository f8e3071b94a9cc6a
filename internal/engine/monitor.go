package engine

import "sync"

// Violation reasons reported by the browser-side watchers. key_blocked is not
// listed: blocked key combinations only have their default action suppressed
// client-side and are logged for audit, they never terminate an attempt.
const (
	ReasonTabHidden      = "tab_hidden"
	ReasonFullscreenExit = "fullscreen_exit"
	ReasonWindowBlur     = "window_blur"
)

// EventKeyBlocked is the non-terminating deterrent event type.
const EventKeyBlocked = "key_blocked"

// IsViolationReason reports whether an incoming integrity event type is one
// of the terminating reasons.
func IsViolationReason(reason string) bool {
	switch reason {
	case ReasonTabHidden, ReasonFullscreenExit, ReasonWindowBlur:
		return true
	}
	return false
}

// IntegrityMonitor gates violation reports. Browser listeners are attached
// once at mount and live for the whole session, so the monitor must consult
// the phase at the moment an event arrives, never a phase captured when the
// callback was registered. The phase accessor passed at construction is that
// live-read indirection.
type IntegrityMonitor struct {
	mu          sync.Mutex
	phase       func() Phase
	onViolation func(reason string)
	armed       bool
	fired       bool
}

// NewIntegrityMonitor creates a disarmed monitor reading the live phase
// through phase.
func NewIntegrityMonitor(phase func() Phase) *IntegrityMonitor {
	return &IntegrityMonitor{phase: phase}
}

// Arm enables violation delivery for one test phase. Resets the once-only
// latch from any previous cycle.
func (m *IntegrityMonitor) Arm(onViolation func(reason string)) {
	m.mu.Lock()
	m.armed = true
	m.fired = false
	m.onViolation = onViolation
	m.mu.Unlock()
}

// Disarm stops all delivery. Browser events already queued when the phase
// ended are dropped here. Idempotent.
func (m *IntegrityMonitor) Disarm() {
	m.mu.Lock()
	m.armed = false
	m.onViolation = nil
	m.mu.Unlock()
}

// Report delivers one watcher event. At most one violation is acted upon per
// arm cycle; the callback is expected to transition the state machine out of
// test, and the transition disarms the monitor. Returns true if the event was
// accepted as the terminating violation.
func (m *IntegrityMonitor) Report(reason string) bool {
	if !IsViolationReason(reason) {
		return false
	}

	m.mu.Lock()
	if !m.armed || m.fired || m.phase() != PhaseTest {
		m.mu.Unlock()
		return false
	}
	m.fired = true
	cb := m.onViolation
	m.mu.Unlock()

	if cb != nil {
		cb(reason)
	}
	return true
}
