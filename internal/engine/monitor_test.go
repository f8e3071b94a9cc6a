package engine_test

import (
	"testing"

	"github.com/liezira/simutbk-backend/internal/engine"
)

func TestIntegrityMonitor_AtMostOneViolationPerArmCycle(t *testing.T) {
	phase := engine.PhaseTest
	m := engine.NewIntegrityMonitor(func() engine.Phase { return phase })

	var fired []string
	m.Arm(func(reason string) { fired = append(fired, reason) })

	if !m.Report(engine.ReasonTabHidden) {
		t.Fatal("first violation should be accepted")
	}
	if m.Report(engine.ReasonWindowBlur) {
		t.Fatal("second violation in the same cycle should be dropped")
	}
	if len(fired) != 1 || fired[0] != engine.ReasonTabHidden {
		t.Fatalf("expected one callback with tab_hidden, got %v", fired)
	}

	// A fresh arm cycle resets the latch.
	m.Arm(func(reason string) { fired = append(fired, reason) })
	if !m.Report(engine.ReasonFullscreenExit) {
		t.Fatal("violation after re-arm should be accepted")
	}
	if len(fired) != 2 {
		t.Fatalf("expected two callbacks total, got %d", len(fired))
	}
}

func TestIntegrityMonitor_SilentAfterDisarm(t *testing.T) {
	phase := engine.PhaseTest
	m := engine.NewIntegrityMonitor(func() engine.Phase { return phase })

	fired := 0
	m.Arm(func(string) { fired++ })
	m.Disarm()

	// A browser event queued before disarm may still arrive afterwards.
	if m.Report(engine.ReasonTabHidden) || fired != 0 {
		t.Fatalf("disarmed monitor acted on an event (fired=%d)", fired)
	}
}

func TestIntegrityMonitor_ReadsLivePhaseNotArmTimePhase(t *testing.T) {
	// The phase changes after Arm. A monitor that captured the phase at
	// registration time would still see test and fire falsely.
	phase := engine.PhaseTest
	m := engine.NewIntegrityMonitor(func() engine.Phase { return phase })

	fired := 0
	m.Arm(func(string) { fired++ })

	phase = engine.PhaseResult
	if m.Report(engine.ReasonWindowBlur) || fired != 0 {
		t.Fatalf("event fired against a stale phase (fired=%d)", fired)
	}

	phase = engine.PhaseTest
	if !m.Report(engine.ReasonWindowBlur) {
		t.Fatal("event in a live test phase should be accepted")
	}
}

func TestIntegrityMonitor_KeyBlockedIsDeterrentOnly(t *testing.T) {
	m := engine.NewIntegrityMonitor(func() engine.Phase { return engine.PhaseTest })

	fired := 0
	m.Arm(func(string) { fired++ })

	if m.Report(engine.EventKeyBlocked) || fired != 0 {
		t.Fatal("key_blocked must never terminate the session")
	}
	if engine.IsViolationReason(engine.EventKeyBlocked) {
		t.Fatal("key_blocked must not classify as a violation reason")
	}
}
