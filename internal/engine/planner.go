package engine

import (
	"fmt"
	"math/rand"
)

// BuildPlan produces a fresh SessionPlan: a uniform random permutation of the
// section list and, per section, a random subset of QuestionCount questions
// drawn without replacement from that section's pool.
//
// No seed is persisted: every attempt gets an independent ordering, so a
// retake never sees a memorized sequence. The flip side is that a crashed
// attempt cannot reproduce its own question set, which is accepted: a
// terminated session is terminal.
func BuildPlan(sections []SectionSpec, pools map[string][]Question) (*SessionPlan, error) {
	if err := ValidatePools(sections, pools); err != nil {
		return nil, err
	}

	order := make([]SectionSpec, len(sections))
	copy(order, sections)
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	bySection := make(map[string][]Question, len(sections))
	for _, sec := range sections {
		pool := make([]Question, len(pools[sec.ID]))
		copy(pool, pools[sec.ID])
		rand.Shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})
		bySection[sec.ID] = pool[:sec.QuestionCount]
	}

	return &SessionPlan{
		SectionOrder:       order,
		QuestionsBySection: bySection,
	}, nil
}

// ValidatePools checks the precondition that every section's pool holds at
// least QuestionCount questions. A failure is a fatal configuration error:
// the attempt must not start.
func ValidatePools(sections []SectionSpec, pools map[string][]Question) error {
	for _, sec := range sections {
		if sec.QuestionCount <= 0 || sec.TimeBudgetMinutes <= 0 {
			return fmt.Errorf("subtest %s: %w", sec.ID, ErrInvalidSection)
		}
		if len(pools[sec.ID]) < sec.QuestionCount {
			return fmt.Errorf("subtest %s: have %d questions, need %d: %w",
				sec.ID, len(pools[sec.ID]), sec.QuestionCount, ErrPoolTooSmall)
		}
	}
	return nil
}

// TotalBudgetSeconds sums every section's time budget. The leaderboard's
// time-remaining figure is computed against this global budget, not against
// whichever section happened to be active at finalization.
func TotalBudgetSeconds(sections []SectionSpec) int {
	total := 0
	for _, sec := range sections {
		total += sec.TimeBudgetMinutes * 60
	}
	return total
}
