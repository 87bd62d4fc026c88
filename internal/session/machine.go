package session

import (
	"sync"

	"quiz-session-host/internal/domain"
	"quiz-session-host/internal/protocol"
)

// Stage is the coarse phase of a live session.
type Stage string

const (
	StageLobby     Stage = "lobby"
	StageCountdown Stage = "countdown"
	StageQuestion  Stage = "question"
	StageResults   Stage = "results"
	StageCancelled Stage = "cancelled"
)

// Snapshot is the materialized view of one live session. It is always a copy;
// observers never share memory with the machine.
type Snapshot struct {
	SessionID      string
	JoinCode       string
	Stage          Stage
	Question       *domain.Question
	IsLastQuestion bool
	QuestionIndex  int
	QuestionTotal  int
	Participants   []domain.Participant
	Answered       []string
	Results        []domain.ResultEntry
	Err            error
}

// AnsweredSet reports whether the participant has answered the current question.
func (s Snapshot) AnsweredSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Answered))
	for _, id := range s.Answered {
		set[id] = struct{}{}
	}
	return set
}

// Machine applies inbound session events as stage transitions and owns the
// session state for its lifetime. Server-pushed events are the sole authority
// for stage advancement; the countdown expiry is the one local transition.
//
// The source of these events (the channel read loop) and the command surface
// (host UI) run on different goroutines, so every transition is serialized
// through one mutex.
type Machine struct {
	mu          sync.Mutex
	sessionID   string
	joinCode    string
	stage       Stage
	roster      *Roster
	results     *Results
	question    *domain.Question
	isLast      bool
	index       int
	total       int
	answered    map[string]struct{}
	order       []string
	fatal       error
	subscribers map[chan Snapshot]struct{}
}

func NewMachine(info domain.SessionInfo, totalQuestions int) *Machine {
	return &Machine{
		sessionID:   info.ID,
		joinCode:    info.JoinCode,
		stage:       StageLobby,
		roster:      NewRoster(),
		results:     NewResults(),
		total:       totalQuestions,
		answered:    make(map[string]struct{}),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

func (m *Machine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Apply runs one inbound event through the transition table and returns the
// resulting stage plus whether the stage changed. Events that are invalid for
// the current stage are ignored: out-of-order delivery is tolerated, never
// escalated.
func (m *Machine) Apply(ev protocol.Event) (Stage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.stage
	switch ev := ev.(type) {
	case protocol.JoinEvent:
		if m.stage != StageLobby {
			break
		}
		if m.roster.Add(domain.Participant{
			ParticipantID: ev.ParticipantID,
			UserID:        ev.UserID,
			Username:      ev.Username,
			PhotoURL:      ev.PhotoURL,
			Role:          ev.Role,
		}) {
			m.broadcastLocked()
		}
	case protocol.LeaveEvent:
		if m.stage != StageLobby {
			break
		}
		if m.roster.Remove(ev.ParticipantID) {
			m.broadcastLocked()
		}
	case protocol.StartEvent:
		if m.stage != StageLobby {
			break
		}
		q := ev.Question
		m.question = &q
		m.isLast = ev.IsLastQuestion
		m.index = 1
		m.stage = StageCountdown
		m.broadcastLocked()
	case protocol.NextEvent:
		if m.stage != StageQuestion {
			break
		}
		q := ev.Question
		m.question = &q
		m.isLast = ev.IsLastQuestion
		m.index++
		m.clearAnsweredLocked()
		m.broadcastLocked()
	case protocol.AnswerEvent:
		if m.stage != StageQuestion {
			break
		}
		if _, seen := m.answered[ev.ParticipantID]; seen {
			break
		}
		m.answered[ev.ParticipantID] = struct{}{}
		m.order = append(m.order, ev.ParticipantID)
		m.broadcastLocked()
	case protocol.FinishEvent:
		if m.stage != StageQuestion {
			break
		}
		m.results.Ingest(ev.Results)
		m.question = nil
		m.isLast = false
		m.clearAnsweredLocked()
		m.stage = StageResults
		m.broadcastLocked()
	case protocol.CancelEvent:
		m.cancelLocked()
	case protocol.ErrorEvent:
		// Reserved by the protocol; no transition consumes it yet.
	}
	return m.stage, m.stage != from
}

// CountdownElapsed moves countdown to question. The caller owns the timer; a
// stale expiry after a stage change is a no-op here.
func (m *Machine) CountdownElapsed() (Stage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage != StageCountdown {
		return m.stage, false
	}
	m.clearAnsweredLocked()
	m.stage = StageQuestion
	m.broadcastLocked()
	return m.stage, true
}

// ForceCancel moves the session to cancelled without waiting for a server
// acknowledgement, used when the host ends the session.
func (m *Machine) ForceCancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked()
}

// Fail surfaces a fatal channel condition to observers. The stage is left
// untouched; the error travels on the snapshot.
func (m *Machine) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fatal = err
	m.broadcastLocked()
}

func (m *Machine) cancelLocked() {
	if m.stage == StageCancelled {
		return
	}
	m.stage = StageCancelled
	m.roster.Clear()
	m.results.Clear()
	m.question = nil
	m.isLast = false
	m.index = 0
	m.clearAnsweredLocked()
	m.broadcastLocked()
}

func (m *Machine) clearAnsweredLocked() {
	m.answered = make(map[string]struct{})
	m.order = nil
}

// CountByRole reports how many tracked participants hold the given role.
func (m *Machine) CountByRole(role domain.Role) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roster.CountByRole(role)
}

// IsLastQuestion reports whether the current question is the final one.
func (m *Machine) IsLastQuestion() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage == StageQuestion && m.isLast
}

// Snapshot returns a copy of the current session view. The current question
// is exposed only in the question stage and results only in the results
// stage, even though the machine holds the pending question during countdown.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every state change,
// primed with the current one. The returned cancel must be called to avoid
// leaks.
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	initial := m.snapshotLocked()
	m.mu.Unlock()

	ch <- initial

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

// Close drops all subscribers. Called on session teardown so nothing outlives
// the machine.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = make(map[chan Snapshot]struct{})
}

func (m *Machine) broadcastLocked() {
	snap := m.snapshotLocked()
	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// A slow observer gets its stale snapshot replaced rather than
			// blocking the transition path.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:     m.sessionID,
		JoinCode:      m.joinCode,
		Stage:         m.stage,
		QuestionTotal: m.total,
		Participants:  m.roster.List(),
		Err:           m.fatal,
	}
	if m.stage == StageQuestion && m.question != nil {
		q := *m.question
		snap.Question = &q
		snap.IsLastQuestion = m.isLast
		snap.QuestionIndex = m.index
		snap.Answered = make([]string, len(m.order))
		copy(snap.Answered, m.order)
	}
	if m.stage == StageResults {
		snap.Results = m.results.Ranked()
	}
	return snap
}
