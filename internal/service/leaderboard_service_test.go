package service

import (
	"testing"
)

func TestCompositeScore_Roundtrip(t *testing.T) {
	cases := []struct {
		score    int
		timeLeft int
	}{
		{0, 0},
		{320, 5400},
		{4, 99999},
		{-1, 99999},
		{-5, 120},
		{-155, 0},
	}

	for _, tc := range cases {
		score, timeLeft := splitComposite(compositeScore(tc.score, tc.timeLeft))
		if score != tc.score || timeLeft != tc.timeLeft {
			t.Errorf("roundtrip(%d, %d) = (%d, %d)", tc.score, tc.timeLeft, score, timeLeft)
		}
	}
}

func TestCompositeScore_ScoreDominatesTime(t *testing.T) {
	// One extra point must outrank any amount of remaining time.
	if compositeScore(10, 0) <= compositeScore(9, 99999) {
		t.Fatal("score must dominate remaining time in the composite key")
	}
	// Equal scores break the tie by remaining time.
	if compositeScore(10, 50) <= compositeScore(10, 49) {
		t.Fatal("equal scores must order by remaining time")
	}
}
