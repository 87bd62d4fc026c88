// Package archive persists the final scores of finished sessions so they can
// be exported after the live channel is gone. The live session state itself is
// never persisted.
package archive

import (
	"context"
	"time"

	"github.com/google/uuid"

	"quiz-session-host/internal/domain"
)

// Record is one finished session's ranked outcome.
type Record struct {
	ID         string               `json:"id"`
	SessionID  string               `json:"session_id"`
	QuizID     string               `json:"quiz_id"`
	JoinCode   string               `json:"join_code"`
	FinishedAt time.Time            `json:"finished_at"`
	Entries    []domain.ResultEntry `json:"entries"`
}

// NewRecord stamps a fresh record for a finished session.
func NewRecord(sessionID, quizID, joinCode string, entries []domain.ResultEntry) Record {
	return Record{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		QuizID:     quizID,
		JoinCode:   joinCode,
		FinishedAt: time.Now().UTC(),
		Entries:    entries,
	}
}

// Archive stores finished-session results. Save overwrites any earlier record
// for the same session id; Load returns domain.ErrResultsNotFound on a miss.
type Archive interface {
	Save(ctx context.Context, record Record) error
	Load(ctx context.Context, sessionID string) (Record, error)
}
