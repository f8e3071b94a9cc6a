package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Session API errors.
var (
	ErrNotInPhase   = errors.New("operation not valid in current phase")
	ErrSessionEnded = errors.New("session has reached result and is terminal")
)

// SessionConfig wires one attempt. Sections and Pools come from the question
// bank collaborator and are read-only to the engine.
type SessionConfig struct {
	Sections         []SectionSpec
	Pools            map[string][]Question
	CountdownSeconds int
	BreakSeconds     int

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time

	// OnFinalize is invoked exactly once, outside the session lock, when the
	// session enters result. The persistence write it triggers is
	// best-effort: the session renders its result regardless.
	OnFinalize func(FinalRecord)

	// OnTransition is invoked outside the session lock after every phase or
	// question move, including timer-driven ones, with a fresh snapshot. This
	// is how a push transport learns about transitions no request caused.
	OnTransition func(StateSnapshot)
}

// PublicQuestion is a question with the answer key stripped, safe to hand to
// the rendering layer.
type PublicQuestion struct {
	ID       string       `json:"id"`
	Kind     QuestionKind `json:"kind"`
	Prompt   string       `json:"prompt"`
	ImageURL string       `json:"image_url,omitempty"`
	Options  []string     `json:"options,omitempty"`
}

// StateSnapshot is everything the rendering layer may see at one instant.
type StateSnapshot struct {
	Phase            Phase           `json:"phase"`
	SectionIndex     int             `json:"section_index"`
	QuestionIndex    int             `json:"question_index"`
	TotalSections    int             `json:"total_sections"`
	Section          *SectionSpec    `json:"section,omitempty"`
	Question         *PublicQuestion `json:"question,omitempty"`
	RemainingSeconds int             `json:"remaining_seconds"`
	SectionAnswers   map[int]Answer  `json:"section_answers,omitempty"`
	ViolationReason  string          `json:"violation_reason,omitempty"`
	Score            *ScoreRecord    `json:"score,omitempty"`
}

// Session is the per-attempt state machine. It owns exactly one DeadlineClock
// and one IntegrityMonitor slot; both are replaced or re-armed on every phase
// transition, never accumulated, so a stale timer or a queued browser event
// can never fire into the wrong phase.
type Session struct {
	mu        sync.Mutex
	cfg       SessionConfig
	now       func() time.Time
	phaseCell atomic.Value // Phase; live-read cell for the monitor

	phase         Phase
	gen           uint64 // bumped on every transition; stale clock callbacks compare against it
	plan          *SessionPlan
	answers       *AnswerStore
	clock         *DeadlineClock
	monitor       *IntegrityMonitor
	sectionIndex  int
	questionIndex int
	globalStart   time.Time
	violation     string
	final         *FinalRecord
}

// NewSession validates the configuration and returns a session in landing.
// A pool smaller than its section's question count is a fatal configuration
// error: the attempt must not start.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := ValidatePools(cfg.Sections, cfg.Pools); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CountdownSeconds <= 0 {
		cfg.CountdownSeconds = 10
	}
	if cfg.BreakSeconds <= 0 {
		cfg.BreakSeconds = 60
	}

	s := &Session{
		cfg:     cfg,
		now:     cfg.Now,
		phase:   PhaseLanding,
		answers: NewAnswerStore(),
	}
	s.phaseCell.Store(PhaseLanding)
	s.monitor = NewIntegrityMonitor(s.Phase)
	return s, nil
}

// Phase reads the live phase cell. Safe from any goroutine, including the
// monitor's event path.
func (s *Session) Phase() Phase {
	return s.phaseCell.Load().(Phase)
}

// Begin performs landing → countdown after the token collaborator accepted
// the attempt. Clears any leftover violation reason and answer state, then
// starts the countdown clock. The fullscreen request is a client concern and
// its failure is non-fatal.
func (s *Session) Begin() error {
	s.mu.Lock()

	if s.phase != PhaseLanding {
		s.mu.Unlock()
		return ErrNotInPhase
	}

	s.violation = ""
	s.answers.Reset()
	s.setPhaseLocked(PhaseCountdown)
	s.startClockLocked(time.Duration(s.cfg.CountdownSeconds)*time.Second, func() func() {
		return s.enterFirstSectionLocked()
	})
	s.mu.Unlock()

	s.notifyTransition()
	return nil
}

// SetAnswer records the student's input for the current question. Rejected
// outside test: the monitor path can reach result asynchronously relative to
// an in-flight keystroke.
func (s *Session) SetAnswer(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseResult {
		return ErrSessionEnded
	}
	if s.phase != PhaseTest {
		return ErrNotInPhase
	}
	sec := s.plan.SectionOrder[s.sectionIndex]
	q := s.plan.QuestionsBySection[sec.ID][s.questionIndex]
	s.answers.Set(sec.ID, s.questionIndex, q.Kind, value)
	return nil
}

// Advance handles the manual "next question" action: test → test within a
// section, test → break at the last question of a non-final section, and
// test → result at the last question of the final section.
func (s *Session) Advance() error {
	s.mu.Lock()

	if s.phase == PhaseResult {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	if s.phase != PhaseTest {
		s.mu.Unlock()
		return ErrNotInPhase
	}

	sec := s.plan.SectionOrder[s.sectionIndex]
	if s.questionIndex < len(s.plan.QuestionsBySection[sec.ID])-1 {
		s.questionIndex++
		s.mu.Unlock()
		s.notifyTransition()
		return nil
	}

	post := s.leaveSectionLocked()
	s.mu.Unlock()
	if post != nil {
		post()
	}
	s.notifyTransition()
	return nil
}

// ReportIntegrity feeds one browser watcher event into the monitor. Returns
// true when the event terminated the session. key_blocked and unknown event
// types never terminate; the caller records them for audit only.
func (s *Session) ReportIntegrity(eventType string) bool {
	return s.monitor.Report(eventType)
}

// State captures a rendering snapshot.
func (s *Session) State() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StateSnapshot{
		Phase:           s.phase,
		SectionIndex:    s.sectionIndex,
		QuestionIndex:   s.questionIndex,
		TotalSections:   len(s.cfg.Sections),
		ViolationReason: s.violation,
	}
	if s.clock != nil && s.phase != PhaseResult {
		snap.RemainingSeconds = s.clock.Remaining()
	}
	if s.phase == PhaseTest && s.plan != nil {
		sec := s.plan.SectionOrder[s.sectionIndex]
		q := s.plan.QuestionsBySection[sec.ID][s.questionIndex]
		snap.Section = &sec
		snap.Question = publicQuestion(q)
		snap.SectionAnswers = s.answers.SectionSnapshot(sec.ID, sec.QuestionCount)
	}
	if s.final != nil {
		score := s.final.Score
		snap.Score = &score
	}
	return snap
}

// SectionQuestions returns the current section's full ordered question list
// with answer keys stripped, so the client can render a navigator.
func (s *Session) SectionQuestions() []PublicQuestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseTest || s.plan == nil {
		return nil
	}
	sec := s.plan.SectionOrder[s.sectionIndex]
	qs := s.plan.QuestionsBySection[sec.ID]
	out := make([]PublicQuestion, len(qs))
	for i, q := range qs {
		out[i] = *publicQuestion(q)
	}
	return out
}

// Final returns the terminal record once the session reached result.
func (s *Session) Final() (*FinalRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final == nil {
		return nil, false
	}
	rec := *s.final
	return &rec, true
}

// ─── Internal transitions ───────────────────────────────────────────
//
// The *Locked helpers require s.mu held and return an optional callback to
// invoke after the lock is released (the OnFinalize hook must never run
// under the session lock).

func (s *Session) setPhaseLocked(p Phase) {
	s.phase = p
	s.phaseCell.Store(p)
	s.gen++
}

// startClockLocked replaces the single clock slot. The expiry callback is
// bound to the current generation: after any later transition the stored
// generation differs and the stale timer is a no-op.
func (s *Session) startClockLocked(d time.Duration, onExpire func() func()) {
	if s.clock != nil {
		s.clock.Stop()
	}
	gen := s.gen
	s.clock = NewDeadlineClock(s.now)
	s.clock.Start(d, nil, func() {
		s.expired(gen, onExpire)
	})
}

func (s *Session) expired(gen uint64, fn func() func()) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	post := fn()
	s.mu.Unlock()
	if post != nil {
		post()
	}
	s.notifyTransition()
}

// enterFirstSectionLocked performs countdown → test. The plan is built here,
// on first entry only, and the global start timestamp is recorded once and
// never overwritten by later sections.
func (s *Session) enterFirstSectionLocked() func() {
	plan, err := BuildPlan(s.cfg.Sections, s.cfg.Pools)
	if err != nil {
		// Pools were validated at construction; if they changed underneath
		// us the attempt cannot proceed. Terminal with an empty score.
		return s.finalizeLocked()
	}
	s.plan = plan
	s.sectionIndex = 0
	s.questionIndex = 0
	s.globalStart = s.now()
	return s.enterTestLocked()
}

// enterTestLocked starts the current section's clock and arms the monitor.
func (s *Session) enterTestLocked() func() {
	s.setPhaseLocked(PhaseTest)
	sec := s.plan.SectionOrder[s.sectionIndex]
	s.startClockLocked(time.Duration(sec.TimeBudgetMinutes)*time.Minute, func() func() {
		return s.leaveSectionLocked()
	})
	s.monitor.Arm(s.violate)
	return nil
}

// leaveSectionLocked ends the active section, either by deadline expiry or by
// a manual advance past its last question.
func (s *Session) leaveSectionLocked() func() {
	if s.sectionIndex < len(s.plan.SectionOrder)-1 {
		return s.enterBreakLocked()
	}
	return s.finalizeLocked()
}

func (s *Session) enterBreakLocked() func() {
	s.monitor.Disarm()
	s.setPhaseLocked(PhaseBreak)
	s.startClockLocked(time.Duration(s.cfg.BreakSeconds)*time.Second, func() func() {
		s.sectionIndex++
		s.questionIndex = 0
		return s.enterTestLocked()
	})
	return nil
}

// violate is the monitor callback: the violation path finalizes exactly like
// a deadline expiry, keeping whatever partial answers exist, rather than
// zeroing the score.
func (s *Session) violate(reason string) {
	s.mu.Lock()
	if s.phase != PhaseTest {
		s.mu.Unlock()
		return
	}
	s.violation = reason
	post := s.finalizeLocked()
	s.mu.Unlock()
	if post != nil {
		post()
	}
	s.notifyTransition()
}

// finalizeLocked performs the single terminal transition into result: stop
// the clock, disarm the monitor, compute the score and the global time
// remaining, and hand the record to OnFinalize. result is terminal; nothing
// leaves it short of a full restart that discards every piece of state.
func (s *Session) finalizeLocked() func() {
	s.monitor.Disarm()
	if s.clock != nil {
		s.clock.Stop()
	}
	s.setPhaseLocked(PhaseResult)

	var score ScoreRecord
	if s.plan != nil {
		score = Score(s.plan, s.answers)
	} else {
		score = ScoreRecord{PerSection: map[string]int{}}
	}

	remaining := 0
	if !s.globalStart.IsZero() {
		elapsed := int(s.now().Sub(s.globalStart) / time.Second)
		remaining = TotalBudgetSeconds(s.cfg.Sections) - elapsed
		if remaining < 0 {
			remaining = 0
		}
	}

	s.final = &FinalRecord{
		Score:                score,
		TimeRemainingSeconds: remaining,
		ViolationReason:      s.violation,
	}

	if cb := s.cfg.OnFinalize; cb != nil {
		rec := *s.final
		return func() { cb(rec) }
	}
	return nil
}

// notifyTransition hands a fresh snapshot to the transition hook. Must be
// called with the session lock released: the snapshot read takes it.
func (s *Session) notifyTransition() {
	if cb := s.cfg.OnTransition; cb != nil {
		cb(s.State())
	}
}

func publicQuestion(q Question) *PublicQuestion {
	return &PublicQuestion{
		ID:       q.ID,
		Kind:     q.Kind,
		Prompt:   q.Prompt,
		ImageURL: q.ImageURL,
		Options:  q.Options,
	}
}
