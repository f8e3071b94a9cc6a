package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testConfig(now *fakeNow, onFinalize func(FinalRecord)) SessionConfig {
	sections := []SectionSpec{
		{ID: "pu", DisplayName: "Penalaran Umum", QuestionCount: 1, TimeBudgetMinutes: 1},
		{ID: "pk", DisplayName: "Pengetahuan Kuantitatif", QuestionCount: 1, TimeBudgetMinutes: 1},
	}
	pools := map[string][]Question{
		"pu": {{ID: "pu-1", Kind: KindSingleChoice, Options: []string{"1", "2", "3", "4", "5"}, AnswerKeys: []string{"C"}}},
		"pk": {{ID: "pk-1", Kind: KindSingleChoice, Options: []string{"1", "2", "3", "4", "5"}, AnswerKeys: []string{"C"}}},
	}
	return SessionConfig{
		Sections:         sections,
		Pools:            pools,
		CountdownSeconds: 5,
		BreakSeconds:     10,
		Now:              now.Now,
		OnFinalize:       onFinalize,
	}
}

// fireDeadline advances the fake wall clock past the active phase's deadline
// and delivers the poll the 1 Hz loop would eventually deliver. Driving poll
// directly keeps the tests free of real sleeps and exercises the
// late-callback tolerance at the same time.
func fireDeadline(t *testing.T, s *Session, now *fakeNow) {
	t.Helper()
	s.mu.Lock()
	clock := s.clock
	s.mu.Unlock()
	if clock == nil {
		t.Fatal("no active clock to expire")
	}
	now.Advance(time.Duration(clock.Remaining()+1) * time.Second)
	clock.poll()
}

func beginToFirstSection(t *testing.T, s *Session, now *fakeNow) {
	t.Helper()
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if got := s.Phase(); got != PhaseCountdown {
		t.Fatalf("expected countdown after Begin, got %s", got)
	}
	fireDeadline(t, s, now) // countdown elapses
	if got := s.Phase(); got != PhaseTest {
		t.Fatalf("expected test after countdown, got %s", got)
	}
}

func TestSession_FullWalkthrough(t *testing.T) {
	now := newFakeNow()
	var finals []FinalRecord
	s, err := NewSession(testConfig(now, func(r FinalRecord) { finals = append(finals, r) }))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	beginToFirstSection(t, s, now)

	snap := s.State()
	if snap.SectionIndex != 0 || snap.QuestionIndex != 0 {
		t.Fatalf("expected section 0 question 0, got %d/%d", snap.SectionIndex, snap.QuestionIndex)
	}
	if snap.Question == nil || len(snap.Question.Options) != OptionCount {
		t.Fatalf("expected a public question with %d options, got %+v", OptionCount, snap.Question)
	}
	if snap.RemainingSeconds <= 0 || snap.RemainingSeconds > 60 {
		t.Fatalf("expected a live section deadline, got %d", snap.RemainingSeconds)
	}

	// Answer section 1 correctly, advance past its last question → break.
	if err := s.SetAnswer("C"); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got := s.Phase(); got != PhaseBreak {
		t.Fatalf("expected break after last question of section 1, got %s", got)
	}

	// Break elapses → section 2, index moved by exactly one.
	fireDeadline(t, s, now)
	snap = s.State()
	if snap.Phase != PhaseTest || snap.SectionIndex != 1 || snap.QuestionIndex != 0 {
		t.Fatalf("expected test section 1 question 0, got %+v", snap)
	}

	// Leave section 2 blank and advance past its last question → result.
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got := s.Phase(); got != PhaseResult {
		t.Fatalf("expected result, got %s", got)
	}

	rec, ok := s.Final()
	if !ok {
		t.Fatal("expected a final record")
	}
	if rec.Score.Total != 3 {
		t.Fatalf("expected total 3 (+4 correct, -1 blank), got %d", rec.Score.Total)
	}
	if rec.ViolationReason != "" {
		t.Fatalf("unexpected violation reason %q", rec.ViolationReason)
	}
	if rec.TimeRemainingSeconds < 0 || rec.TimeRemainingSeconds > 120 {
		t.Fatalf("time remaining out of range: %d", rec.TimeRemainingSeconds)
	}
	if len(finals) != 1 {
		t.Fatalf("OnFinalize invoked %d times, want 1", len(finals))
	}
}

func TestSession_FinalSectionDeadlineFinalizes(t *testing.T) {
	now := newFakeNow()
	s, err := NewSession(testConfig(now, nil))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	beginToFirstSection(t, s, now)
	fireDeadline(t, s, now) // section 1 deadline → break
	if got := s.Phase(); got != PhaseBreak {
		t.Fatalf("expected break, got %s", got)
	}
	fireDeadline(t, s, now) // break → section 2
	fireDeadline(t, s, now) // section 2 deadline → result

	rec, ok := s.Final()
	if !ok {
		t.Fatal("expected a final record after final deadline")
	}
	if rec.Score.Total != -2 {
		t.Fatalf("expected -2 for two blanks, got %d", rec.Score.Total)
	}
	// Every budgeted second was burned, so nothing remains globally.
	if rec.TimeRemainingSeconds != 0 {
		t.Fatalf("expected 0 time remaining, got %d", rec.TimeRemainingSeconds)
	}
}

func TestSession_ViolationTerminatesWithPartialScore(t *testing.T) {
	now := newFakeNow()
	s, err := NewSession(testConfig(now, nil))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	beginToFirstSection(t, s, now)
	if err := s.SetAnswer("C"); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}

	if !s.ReportIntegrity(ReasonFullscreenExit) {
		t.Fatal("expected the violation to be acted upon")
	}

	snap := s.State()
	if snap.Phase != PhaseResult || snap.ViolationReason != ReasonFullscreenExit {
		t.Fatalf("expected result with fullscreen_exit, got %+v", snap)
	}

	// Captured answers count; the never-reached section scores -1.
	rec, _ := s.Final()
	if rec.Score.Total != 3 {
		t.Fatalf("expected partial score 3, got %d", rec.Score.Total)
	}

	// The session is terminal: later events and writes are rejected.
	if s.ReportIntegrity(ReasonTabHidden) {
		t.Fatal("violation after result must be a no-op")
	}
	if err := s.SetAnswer("A"); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
	if err := s.Advance(); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
}

func TestSession_StaleTimerIsNoOp(t *testing.T) {
	now := newFakeNow()
	s, err := NewSession(testConfig(now, nil))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	beginToFirstSection(t, s, now)

	s.mu.Lock()
	staleClock := s.clock
	staleGen := s.gen
	s.mu.Unlock()

	// Manual advance moves to break and replaces the clock slot.
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got := s.Phase(); got != PhaseBreak {
		t.Fatalf("expected break, got %s", got)
	}

	// The superseded section timer fires late: both the stop flag and the
	// generation guard must make it a no-op.
	now.Advance(5 * time.Minute)
	staleClock.poll()
	s.expired(staleGen, func() func() {
		t.Fatal("stale generation callback must not run")
		return nil
	})

	if got := s.Phase(); got != PhaseBreak {
		t.Fatalf("stale timer moved the phase to %s", got)
	}
}

func TestSession_KeyBlockedNeverTerminates(t *testing.T) {
	now := newFakeNow()
	s, err := NewSession(testConfig(now, nil))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	beginToFirstSection(t, s, now)

	if s.ReportIntegrity(EventKeyBlocked) {
		t.Fatal("key_blocked must not terminate")
	}
	if got := s.Phase(); got != PhaseTest {
		t.Fatalf("expected test to continue, got %s", got)
	}
}

func TestSession_BeginRequiresLanding(t *testing.T) {
	now := newFakeNow()
	s, err := NewSession(testConfig(now, nil))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Begin(); !errors.Is(err, ErrNotInPhase) {
		t.Fatalf("expected ErrNotInPhase on double Begin, got %v", err)
	}
}

func TestNewSession_RejectsThinPools(t *testing.T) {
	now := newFakeNow()
	cfg := testConfig(now, nil)
	cfg.Sections[0].QuestionCount = 3 // pool only has 1

	_, err := NewSession(cfg)
	if !errors.Is(err, ErrPoolTooSmall) {
		t.Fatalf("expected ErrPoolTooSmall, got %v", err)
	}
}

func TestSession_AdvanceWithinSection(t *testing.T) {
	now := newFakeNow()
	sections := []SectionSpec{{ID: "pu", QuestionCount: 3, TimeBudgetMinutes: 2}}
	pool := make([]Question, 5)
	for i := range pool {
		pool[i] = Question{ID: fmt.Sprintf("q%d", i), Kind: KindSingleChoice, AnswerKeys: []string{"A"}}
	}
	s, err := NewSession(SessionConfig{
		Sections:         sections,
		Pools:            map[string][]Question{"pu": pool},
		CountdownSeconds: 1,
		BreakSeconds:     1,
		Now:              now.Now,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	beginToFirstSection(t, s, now)

	for want := 1; want <= 2; want++ {
		if err := s.Advance(); err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if snap := s.State(); snap.Phase != PhaseTest || snap.QuestionIndex != want {
			t.Fatalf("expected test question %d, got %+v", want, snap)
		}
	}

	// Past the last question of the only section → straight to result.
	if err := s.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got := s.Phase(); got != PhaseResult {
		t.Fatalf("expected result, got %s", got)
	}
}

func TestSession_TransitionHookSeesTimerMoves(t *testing.T) {
	now := newFakeNow()
	cfg := testConfig(now, nil)

	var mu sync.Mutex
	var phases []Phase
	cfg.OnTransition = func(snap StateSnapshot) {
		mu.Lock()
		phases = append(phases, snap.Phase)
		mu.Unlock()
	}

	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// Countdown, section 1 deadline, break, section 2 deadline: every one of
	// these moves is clock-driven, with no client request in sight.
	for i := 0; i < 4; i++ {
		fireDeadline(t, s, now)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Phase{PhaseCountdown, PhaseTest, PhaseBreak, PhaseTest, PhaseResult}
	if len(phases) != len(want) {
		t.Fatalf("hook fired %d times, want %d: %v", len(phases), len(want), phases)
	}
	for i, p := range want {
		if phases[i] != p {
			t.Fatalf("transition %d: got %s, want %s (all: %v)", i, phases[i], p, phases)
		}
	}
}

func TestSession_TransitionHookFiresOnViolation(t *testing.T) {
	now := newFakeNow()
	cfg := testConfig(now, nil)

	var mu sync.Mutex
	var last StateSnapshot
	cfg.OnTransition = func(snap StateSnapshot) {
		mu.Lock()
		last = snap
		mu.Unlock()
	}

	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	beginToFirstSection(t, s, now)

	if terminated := s.ReportIntegrity(ReasonTabHidden); !terminated {
		t.Fatal("expected tab_hidden to terminate an armed test phase")
	}

	mu.Lock()
	defer mu.Unlock()
	if last.Phase != PhaseResult {
		t.Fatalf("expected the hook to deliver the result phase, got %s", last.Phase)
	}
	if last.ViolationReason == "" {
		t.Fatal("expected the pushed snapshot to carry the violation reason")
	}
}
