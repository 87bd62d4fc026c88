package session

import (
	"sort"

	"quiz-session-host/internal/domain"
)

// Results accumulates the final scores delivered when the quiz finishes.
type Results struct {
	entries []domain.ResultEntry
}

func NewResults() *Results {
	return &Results{}
}

// Ingest stores the results list verbatim. The protocol delivers it once per
// session; a repeated ingest overwrites rather than erroring, which keeps the
// client forgiving about replays.
func (r *Results) Ingest(entries []domain.ResultEntry) {
	r.entries = make([]domain.ResultEntry, len(entries))
	copy(r.entries, entries)
}

// Ranked returns the entries sorted descending by points. The sort is stable,
// so equal scores keep the order the server delivered them in.
func (r *Results) Ranked() []domain.ResultEntry {
	out := make([]domain.ResultEntry, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalPoints > out[j].TotalPoints
	})
	return out
}

func (r *Results) Len() int {
	return len(r.entries)
}

func (r *Results) Clear() {
	r.entries = nil
}
