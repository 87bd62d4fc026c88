package domain

// Role classifies a session participant.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
	RoleGuest       Role = "guest"
)

// SessionStatus mirrors the lifecycle the platform reports for a session.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// QuestionType governs how answers and input are interpreted.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TextAnswer     QuestionType = "text"
)

// Participant is one connected actor in a live session. The participant ID is
// session-scoped and assigned by the server; the user ID is the stable identity.
type Participant struct {
	ParticipantID string `json:"participant_id"`
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	PhotoURL      string `json:"photo_url"`
	Role          Role   `json:"role"`
}

// Answer is one option of a question, ordered for display.
type Answer struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
	Order     int    `json:"order"`
}

// Question is quiz catalog content; the session client consumes it and never
// mutates it.
type Question struct {
	ID          string       `json:"id"`
	QuizID      string       `json:"quiz_id,omitempty"`
	Order       int          `json:"order"`
	Title       string       `json:"title"`
	Type        QuestionType `json:"type"`
	Weight      int          `json:"weight"`
	Description string       `json:"description,omitempty"`
	MediaPath   string       `json:"media_path,omitempty"`
	Answers     []Answer     `json:"answers"`
}

// Quiz is the catalog entry a session runs against.
type Quiz struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	IsPublic       bool   `json:"is_public"`
	QuestionsCount int    `json:"questions_count"`
}

// SessionInfo is the bootstrap view of a live session returned by the platform.
type SessionInfo struct {
	ID                   string        `json:"id"`
	JoinCode             string        `json:"join_code"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"current_question_index"`
}

// ResultEntry pairs a participant with their final score.
type ResultEntry struct {
	Participant Participant `json:"participant"`
	TotalPoints int         `json:"total_points"`
}
