package session

import "quiz-session-host/internal/domain"

// Roster is the de-duplicated set of participants in a session, keyed by the
// server-assigned participant ID. Arrival order is preserved so the roster
// renders deterministically.
type Roster struct {
	entries []domain.Participant
	present map[string]struct{}
}

func NewRoster() *Roster {
	return &Roster{present: make(map[string]struct{})}
}

// Add appends a participant and reports whether the roster changed. A
// duplicate join for an already-tracked participant ID is a no-op.
func (r *Roster) Add(p domain.Participant) bool {
	if _, ok := r.present[p.ParticipantID]; ok {
		return false
	}
	r.present[p.ParticipantID] = struct{}{}
	r.entries = append(r.entries, p)
	return true
}

// Remove drops a participant and reports whether the roster changed. Removing
// an untracked ID is a no-op.
func (r *Roster) Remove(participantID string) bool {
	if _, ok := r.present[participantID]; !ok {
		return false
	}
	delete(r.present, participantID)
	for i, p := range r.entries {
		if p.ParticipantID == participantID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	return true
}

func (r *Roster) Len() int {
	return len(r.entries)
}

// CountByRole counts tracked participants holding the given role.
func (r *Roster) CountByRole(role domain.Role) int {
	n := 0
	for _, p := range r.entries {
		if p.Role == role {
			n++
		}
	}
	return n
}

// List returns the participants in arrival order. The slice is a copy.
func (r *Roster) List() []domain.Participant {
	out := make([]domain.Participant, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Roster) Clear() {
	r.entries = nil
	r.present = make(map[string]struct{})
}
