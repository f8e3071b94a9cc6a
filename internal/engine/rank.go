package engine

// LeaderboardEntry is one finalized attempt in the persisted top-N snapshot.
type LeaderboardEntry struct {
	Name                 string `json:"name"`
	Score                int    `json:"score"`
	TimeRemainingSeconds int    `json:"time_remaining_seconds"`
}

// Beats reports whether e sorts strictly ahead of other: score descending,
// then time remaining descending (the faster finisher wins ties).
func (e LeaderboardEntry) Beats(other LeaderboardEntry) bool {
	if e.Score != other.Score {
		return e.Score > other.Score
	}
	return e.TimeRemainingSeconds > other.TimeRemainingSeconds
}

// Rank places this attempt against a previously fetched top-N snapshot.
// window is the leaderboard size N; ok is false when the attempt does not
// place within the window. The snapshot is read-only: the caller decides
// separately whether to persist the attempt.
func Rank(score, timeRemainingSeconds int, snapshot []LeaderboardEntry, window int) (rank int, ok bool) {
	self := LeaderboardEntry{Score: score, TimeRemainingSeconds: timeRemainingSeconds}

	ahead := 0
	for _, e := range snapshot {
		if e.Beats(self) {
			ahead++
		}
	}

	rank = ahead + 1
	if window > 0 && rank > window {
		return 0, false
	}
	return rank, true
}
