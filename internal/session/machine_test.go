package session

import (
	"testing"

	"quiz-session-host/internal/domain"
	"quiz-session-host/internal/protocol"
)

func testInfo() domain.SessionInfo {
	return domain.SessionInfo{ID: "s1", JoinCode: "ABCD", Status: domain.StatusWaiting}
}

func joinEvent(id string, role domain.Role) protocol.JoinEvent {
	return protocol.JoinEvent{ParticipantID: id, UserID: "u-" + id, Username: "name-" + id, Role: role}
}

func question(id string, order int) domain.Question {
	return domain.Question{
		ID:    id,
		Order: order,
		Title: "question " + id,
		Type:  domain.SingleChoice,
		Answers: []domain.Answer{
			{Text: "a", IsCorrect: true, Order: 1},
			{Text: "b", Order: 2},
		},
	}
}

// toQuestionStage drives a fresh machine through start and countdown expiry.
func toQuestionStage(t *testing.T, m *Machine, isLast bool) {
	t.Helper()
	if stage, _ := m.Apply(protocol.StartEvent{Question: question("q1", 1), IsLastQuestion: isLast}); stage != StageCountdown {
		t.Fatalf("expected countdown after start, got %s", stage)
	}
	if stage, changed := m.CountdownElapsed(); stage != StageQuestion || !changed {
		t.Fatalf("expected question after countdown, got %s (changed=%v)", stage, changed)
	}
}

func TestDuplicateJoinIsIdempotent(t *testing.T) {
	m := NewMachine(testInfo(), 3)

	m.Apply(joinEvent("p1", domain.RoleParticipant))
	m.Apply(joinEvent("p1", domain.RoleParticipant))
	if got := len(m.Snapshot().Participants); got != 1 {
		t.Fatalf("expected roster size 1 after duplicate join, got %d", got)
	}

	m.Apply(protocol.LeaveEvent{ParticipantID: "p1"})
	if got := len(m.Snapshot().Participants); got != 0 {
		t.Fatalf("expected roster size 0 after leave, got %d", got)
	}
}

func TestStartEntersCountdownThenQuestion(t *testing.T) {
	m := NewMachine(testInfo(), 3)

	stage, changed := m.Apply(protocol.StartEvent{Question: question("q1", 1), IsLastQuestion: false})
	if stage != StageCountdown || !changed {
		t.Fatalf("expected countdown, got %s (changed=%v)", stage, changed)
	}
	// The pending question stays hidden until the countdown elapses.
	if snap := m.Snapshot(); snap.Question != nil {
		t.Fatalf("expected no visible question during countdown, got %+v", snap.Question)
	}

	m.CountdownElapsed()
	snap := m.Snapshot()
	if snap.Stage != StageQuestion || snap.Question == nil || snap.Question.ID != "q1" {
		t.Fatalf("expected question q1 visible, got %+v", snap)
	}
	if snap.QuestionIndex != 1 {
		t.Fatalf("expected question index 1, got %d", snap.QuestionIndex)
	}
}

func TestCountdownElapsedOutsideCountdownIsNoop(t *testing.T) {
	m := NewMachine(testInfo(), 3)
	if stage, changed := m.CountdownElapsed(); stage != StageLobby || changed {
		t.Fatalf("stale countdown expiry must not transition, got %s (changed=%v)", stage, changed)
	}
}

func TestAnswerDeduplicated(t *testing.T) {
	m := NewMachine(testInfo(), 3)
	toQuestionStage(t, m, false)

	m.Apply(protocol.AnswerEvent{ParticipantID: "p1"})
	m.Apply(protocol.AnswerEvent{ParticipantID: "p1"})
	m.Apply(protocol.AnswerEvent{ParticipantID: "p2"})

	snap := m.Snapshot()
	if len(snap.Answered) != 2 {
		t.Fatalf("expected answered set of 2, got %v", snap.Answered)
	}
	if snap.Answered[0] != "p1" || snap.Answered[1] != "p2" {
		t.Fatalf("expected answer arrival order preserved, got %v", snap.Answered)
	}
}

func TestNextReplacesQuestionAndClearsAnswers(t *testing.T) {
	m := NewMachine(testInfo(), 3)
	toQuestionStage(t, m, false)
	m.Apply(protocol.AnswerEvent{ParticipantID: "p1"})

	stage, changed := m.Apply(protocol.NextEvent{Question: question("q2", 2), IsLastQuestion: true})
	if stage != StageQuestion || changed {
		t.Fatalf("next keeps the question stage, got %s (changed=%v)", stage, changed)
	}
	snap := m.Snapshot()
	if snap.Question.ID != "q2" || snap.QuestionIndex != 2 || !snap.IsLastQuestion {
		t.Fatalf("unexpected snapshot after next: %+v", snap)
	}
	if len(snap.Answered) != 0 {
		t.Fatalf("answered set must reset on every entry into question, got %v", snap.Answered)
	}
}

func TestFinishStoresRankedResults(t *testing.T) {
	m := NewMachine(testInfo(), 2)
	toQuestionStage(t, m, true)

	stage, _ := m.Apply(protocol.FinishEvent{Results: []domain.ResultEntry{
		{Participant: domain.Participant{ParticipantID: "A", Username: "A"}, TotalPoints: 10},
		{Participant: domain.Participant{ParticipantID: "B", Username: "B"}, TotalPoints: 20},
	}})
	if stage != StageResults {
		t.Fatalf("expected results stage, got %s", stage)
	}

	snap := m.Snapshot()
	if snap.Question != nil || len(snap.Answered) != 0 {
		t.Fatalf("finish must clear per-question state, got %+v", snap)
	}
	if len(snap.Results) != 2 || snap.Results[0].Participant.ParticipantID != "B" || snap.Results[1].Participant.ParticipantID != "A" {
		t.Fatalf("expected ranking [B,A], got %+v", snap.Results)
	}
}

func TestInvalidStageEventPairsAreIgnored(t *testing.T) {
	cases := []struct {
		name  string
		setup func(m *Machine)
		event protocol.Event
	}{
		{"answer in lobby", func(*Machine) {}, protocol.AnswerEvent{ParticipantID: "p1"}},
		{"next in lobby", func(*Machine) {}, protocol.NextEvent{Question: question("q9", 9)}},
		{"finish in lobby", func(*Machine) {}, protocol.FinishEvent{}},
		{"start during countdown", func(m *Machine) {
			m.Apply(protocol.StartEvent{Question: question("q1", 1)})
		}, protocol.StartEvent{Question: question("q2", 2)}},
		{"join during question", func(m *Machine) {
			m.Apply(protocol.StartEvent{Question: question("q1", 1)})
			m.CountdownElapsed()
		}, joinEvent("p9", domain.RoleParticipant)},
		{"answer in results", func(m *Machine) {
			m.Apply(protocol.StartEvent{Question: question("q1", 1), IsLastQuestion: true})
			m.CountdownElapsed()
			m.Apply(protocol.FinishEvent{})
		}, protocol.AnswerEvent{ParticipantID: "p1"}},
	}

	for _, tc := range cases {
		m := NewMachine(testInfo(), 3)
		tc.setup(m)
		before := m.Snapshot()
		stage, changed := m.Apply(tc.event)
		if changed {
			t.Errorf("%s: stage changed to %s", tc.name, stage)
		}
		after := m.Snapshot()
		if after.Stage != before.Stage || len(after.Participants) != len(before.Participants) || len(after.Answered) != len(before.Answered) {
			t.Errorf("%s: state changed: before %+v after %+v", tc.name, before, after)
		}
	}
}

func TestErrorEventIsDecodedButInert(t *testing.T) {
	m := NewMachine(testInfo(), 3)
	if stage, changed := m.Apply(protocol.ErrorEvent{Message: "server hiccup"}); stage != StageLobby || changed {
		t.Fatalf("error event must not transition, got %s (changed=%v)", stage, changed)
	}
}

func TestCancelFromAnyStageClearsState(t *testing.T) {
	setups := map[string]func(m *Machine){
		"lobby": func(m *Machine) {
			m.Apply(joinEvent("p1", domain.RoleParticipant))
		},
		"countdown": func(m *Machine) {
			m.Apply(joinEvent("p1", domain.RoleParticipant))
			m.Apply(protocol.StartEvent{Question: question("q1", 1)})
		},
		"question": func(m *Machine) {
			m.Apply(joinEvent("p1", domain.RoleParticipant))
			m.Apply(protocol.StartEvent{Question: question("q1", 1)})
			m.CountdownElapsed()
			m.Apply(protocol.AnswerEvent{ParticipantID: "p1"})
		},
		"results": func(m *Machine) {
			m.Apply(protocol.StartEvent{Question: question("q1", 1), IsLastQuestion: true})
			m.CountdownElapsed()
			m.Apply(protocol.FinishEvent{Results: []domain.ResultEntry{{TotalPoints: 1}}})
		},
	}

	for name, setup := range setups {
		m := NewMachine(testInfo(), 3)
		setup(m)
		stage, _ := m.Apply(protocol.CancelEvent{})
		if stage != StageCancelled {
			t.Errorf("%s: expected cancelled, got %s", name, stage)
		}
		snap := m.Snapshot()
		if len(snap.Participants) != 0 || snap.Question != nil || len(snap.Results) != 0 || len(snap.Answered) != 0 {
			t.Errorf("%s: expected cleared snapshot, got %+v", name, snap)
		}
	}
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	m := NewMachine(testInfo(), 3)
	ch, cancel := m.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.Stage != StageLobby {
		t.Fatalf("expected initial lobby snapshot, got %s", initial.Stage)
	}

	m.Apply(joinEvent("p1", domain.RoleParticipant))
	snap := <-ch
	if len(snap.Participants) != 1 {
		t.Fatalf("expected join broadcast, got %+v", snap.Participants)
	}
}

func TestSlowSubscriberDoesNotBlockTransitions(t *testing.T) {
	m := NewMachine(testInfo(), 3)
	_, cancel := m.Subscribe()
	defer cancel()

	// Never read; the buffer fills and stale snapshots get replaced.
	for i := 0; i < 50; i++ {
		m.Apply(joinEvent(string(rune('a'+i%26))+"-p", domain.RoleParticipant))
		m.Apply(protocol.LeaveEvent{ParticipantID: string(rune('a'+i%26)) + "-p"})
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewMachine(testInfo(), 3)
	m.Apply(joinEvent("p1", domain.RoleParticipant))

	snap := m.Snapshot()
	snap.Participants[0].Username = "tampered"

	if m.Snapshot().Participants[0].Username == "tampered" {
		t.Fatal("snapshot shares participant memory with the machine")
	}
}
