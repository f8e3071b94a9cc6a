package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Answer is the tagged variant stored per question. Exactly one value field
// is meaningful for a given Kind, which removes kind-sniffing at every
// consumption site.
type Answer struct {
	Kind    QuestionKind    `json:"kind"`
	Choice  string          `json:"choice,omitempty"`
	Choices map[string]bool `json:"choices,omitempty"`
	Text    string          `json:"text,omitempty"`
}

// Answered reports whether the variant counts as an answer. Missing entries,
// empty sets, and blank-after-trim text all score -1, so this definition is
// load-bearing for scoring.
func (a Answer) Answered() bool {
	switch a.Kind {
	case KindSingleChoice:
		return a.Choice != ""
	case KindMultiChoice:
		return len(a.Choices) > 0
	case KindFreeText:
		return strings.TrimSpace(a.Text) != ""
	}
	return false
}

// Labels returns the selected multi-choice labels in stable order.
func (a Answer) Labels() []string {
	labels := make([]string, 0, len(a.Choices))
	for l := range a.Choices {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// AnswerKey builds the "{sectionID}_{questionIndex}" map key.
func AnswerKey(sectionID string, questionIndex int) string {
	return fmt.Sprintf("%s_%d", sectionID, questionIndex)
}

// AnswerStore maps (section, question index) to an Answer. Writes come only
// from the student during an active test phase; the state machine enforces
// the phase guard, the store only handles value semantics.
type AnswerStore struct {
	mu sync.RWMutex
	m  map[string]Answer
}

// NewAnswerStore returns an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{m: make(map[string]Answer)}
}

// Set records one input. For multi_choice the value is a single label whose
// membership is toggled (insert if absent, remove if present); for
// single_choice and free_text the stored value is replaced outright.
func (s *AnswerStore) Set(sectionID string, questionIndex int, kind QuestionKind, value string) {
	key := AnswerKey(sectionID, questionIndex)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case KindSingleChoice:
		s.m[key] = Answer{Kind: kind, Choice: value}
	case KindFreeText:
		s.m[key] = Answer{Kind: kind, Text: value}
	case KindMultiChoice:
		prev := s.m[key]
		choices := make(map[string]bool, len(prev.Choices)+1)
		for l := range prev.Choices {
			choices[l] = true
		}
		if choices[value] {
			delete(choices, value)
		} else {
			choices[value] = true
		}
		s.m[key] = Answer{Kind: kind, Choices: choices}
	}
}

// Get returns the stored answer, if any.
func (s *AnswerStore) Get(sectionID string, questionIndex int) (Answer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.m[AnswerKey(sectionID, questionIndex)]
	return a, ok
}

// SectionSnapshot copies the answers of one section's first count questions,
// keyed by question index. Used by the rendering layer.
func (s *AnswerStore) SectionSnapshot(sectionID string, count int) map[int]Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[int]Answer)
	for i := 0; i < count; i++ {
		if a, ok := s.m[AnswerKey(sectionID, i)]; ok {
			snap[i] = a
		}
	}
	return snap
}

// Reset clears every stored answer. Called once at attempt start.
func (s *AnswerStore) Reset() {
	s.mu.Lock()
	s.m = make(map[string]Answer)
	s.mu.Unlock()
}
