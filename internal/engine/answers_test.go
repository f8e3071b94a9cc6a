package engine_test

import (
	"reflect"
	"testing"

	"github.com/liezira/simutbk-backend/internal/engine"
)

func TestAnswerStore_SingleChoiceSetIsIdempotent(t *testing.T) {
	s := engine.NewAnswerStore()

	s.Set("pu", 0, engine.KindSingleChoice, "B")
	s.Set("pu", 0, engine.KindSingleChoice, "B")

	a, ok := s.Get("pu", 0)
	if !ok || a.Choice != "B" {
		t.Fatalf("expected stored choice B, got %+v (ok=%v)", a, ok)
	}
}

func TestAnswerStore_SingleChoiceReplaces(t *testing.T) {
	s := engine.NewAnswerStore()

	s.Set("pu", 0, engine.KindSingleChoice, "A")
	s.Set("pu", 0, engine.KindSingleChoice, "D")

	a, _ := s.Get("pu", 0)
	if a.Choice != "D" {
		t.Fatalf("expected D after replace, got %q", a.Choice)
	}
}

func TestAnswerStore_MultiChoiceTogglesMembership(t *testing.T) {
	s := engine.NewAnswerStore()

	s.Set("pk", 2, engine.KindMultiChoice, "A")
	s.Set("pk", 2, engine.KindMultiChoice, "C")

	a, _ := s.Get("pk", 2)
	if got := a.Labels(); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Fatalf("expected {A C}, got %v", got)
	}

	// Toggling the same label twice restores the original set.
	s.Set("pk", 2, engine.KindMultiChoice, "B")
	s.Set("pk", 2, engine.KindMultiChoice, "B")

	a, _ = s.Get("pk", 2)
	if got := a.Labels(); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Fatalf("expected {A C} after double toggle, got %v", got)
	}

	// Toggling an existing label removes it.
	s.Set("pk", 2, engine.KindMultiChoice, "A")
	a, _ = s.Get("pk", 2)
	if got := a.Labels(); !reflect.DeepEqual(got, []string{"C"}) {
		t.Fatalf("expected {C} after removing A, got %v", got)
	}
}

func TestAnswer_AnsweredDefinition(t *testing.T) {
	tests := []struct {
		name   string
		answer engine.Answer
		want   bool
	}{
		{"missing single choice", engine.Answer{Kind: engine.KindSingleChoice}, false},
		{"selected single choice", engine.Answer{Kind: engine.KindSingleChoice, Choice: "E"}, true},
		{"empty set", engine.Answer{Kind: engine.KindMultiChoice, Choices: map[string]bool{}}, false},
		{"non-empty set", engine.Answer{Kind: engine.KindMultiChoice, Choices: map[string]bool{"A": true}}, true},
		{"blank text", engine.Answer{Kind: engine.KindFreeText, Text: "   "}, false},
		{"real text", engine.Answer{Kind: engine.KindFreeText, Text: " 25 "}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.answer.Answered(); got != tc.want {
				t.Fatalf("Answered() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAnswerStore_SectionSnapshotAndReset(t *testing.T) {
	s := engine.NewAnswerStore()
	s.Set("pu", 0, engine.KindSingleChoice, "A")
	s.Set("pu", 3, engine.KindFreeText, "Jakarta")
	s.Set("pk", 0, engine.KindSingleChoice, "B")

	snap := s.SectionSnapshot("pu", 5)
	if len(snap) != 2 {
		t.Fatalf("expected 2 answers in pu snapshot, got %d", len(snap))
	}
	if snap[3].Text != "Jakarta" {
		t.Fatalf("expected Jakarta at index 3, got %+v", snap[3])
	}

	s.Reset()
	if _, ok := s.Get("pu", 0); ok {
		t.Fatal("expected store to be empty after Reset")
	}
}
