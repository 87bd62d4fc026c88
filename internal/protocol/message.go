package protocol

import (
	"encoding/json"
	"fmt"

	"quiz-session-host/internal/domain"
)

// Type identifies a session message. The set is closed; frames with any other
// type are rejected at decode time.
type Type string

const (
	TypeJoin   Type = "join"
	TypeStart  Type = "start"
	TypeNext   Type = "next"
	TypeLeave  Type = "leave"
	TypeFinish Type = "finish"
	TypeCancel Type = "cancel"
	TypeError  Type = "error"
	TypeAnswer Type = "answer"
)

// outboundTypes is the command set a host client may send.
var outboundTypes = map[Type]struct{}{
	TypeJoin:   {},
	TypeStart:  {},
	TypeNext:   {},
	TypeFinish: {},
	TypeCancel: {},
}

// Event is one decoded inbound message. Each type decodes into a fixed-field
// variant; payload fields outside the variant are ignored.
type Event interface {
	EventType() Type
}

// JoinEvent announces a participant entering the session.
type JoinEvent struct {
	ParticipantID string      `json:"participant_id"`
	UserID        string      `json:"user_id"`
	Username      string      `json:"username"`
	PhotoURL      string      `json:"photo_url"`
	Role          domain.Role `json:"role"`
}

func (JoinEvent) EventType() Type { return TypeJoin }

// LeaveEvent announces a participant leaving the session.
type LeaveEvent struct {
	ParticipantID string `json:"participant_id"`
}

func (LeaveEvent) EventType() Type { return TypeLeave }

// StartEvent carries the first question once the server starts the quiz.
type StartEvent struct {
	Question       domain.Question `json:"question"`
	IsLastQuestion bool            `json:"is_last_question"`
}

func (StartEvent) EventType() Type { return TypeStart }

// NextEvent carries the question replacing the current one.
type NextEvent struct {
	Question       domain.Question `json:"question"`
	IsLastQuestion bool            `json:"is_last_question"`
}

func (NextEvent) EventType() Type { return TypeNext }

// AnswerEvent reports that a participant answered the current question.
type AnswerEvent struct {
	ParticipantID string `json:"participant_id"`
}

func (AnswerEvent) EventType() Type { return TypeAnswer }

// FinishEvent delivers the final per-participant scores.
type FinishEvent struct {
	Results []domain.ResultEntry `json:"results"`
}

func (FinishEvent) EventType() Type { return TypeFinish }

// CancelEvent terminates the session from either side.
type CancelEvent struct{}

func (CancelEvent) EventType() Type { return TypeCancel }

// ErrorEvent is reserved by the protocol; no transition consumes it, but it
// must decode without failing the channel.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) EventType() Type { return TypeError }

// Decode parses a raw frame into its tagged variant. Malformed JSON, a
// missing or non-string type, and types outside the known set all return an
// error; callers are expected to drop such frames and keep the channel alive.
func Decode(raw []byte) (Event, error) {
	var envelope struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if envelope.Type == nil {
		return nil, fmt.Errorf("%w: missing type", domain.ErrMalformedMessage)
	}

	switch Type(*envelope.Type) {
	case TypeJoin:
		var ev JoinEvent
		return ev, unmarshalVariant(raw, &ev)
	case TypeLeave:
		var ev LeaveEvent
		return ev, unmarshalVariant(raw, &ev)
	case TypeStart:
		var ev StartEvent
		return ev, unmarshalVariant(raw, &ev)
	case TypeNext:
		var ev NextEvent
		return ev, unmarshalVariant(raw, &ev)
	case TypeAnswer:
		var ev AnswerEvent
		return ev, unmarshalVariant(raw, &ev)
	case TypeFinish:
		var ev FinishEvent
		return ev, unmarshalVariant(raw, &ev)
	case TypeCancel:
		return CancelEvent{}, nil
	case TypeError:
		var ev ErrorEvent
		return ev, unmarshalVariant(raw, &ev)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMessageType, *envelope.Type)
	}
}

func unmarshalVariant(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	return nil
}

// EncodeJoin serializes the join announcement the host sends on connect.
func EncodeJoin(username string) ([]byte, error) {
	return json.Marshal(struct {
		Type     Type   `json:"type"`
		Username string `json:"username"`
	}{Type: TypeJoin, Username: username})
}

// EncodeCommand serializes a bare outbound command (start, next, finish,
// cancel). Inbound-only types are rejected; join carries a payload and goes
// through EncodeJoin.
func EncodeCommand(t Type) ([]byte, error) {
	if _, ok := outboundTypes[t]; !ok || t == TypeJoin {
		return nil, fmt.Errorf("%w: %q is not an outbound command", domain.ErrUnknownMessageType, t)
	}
	return json.Marshal(struct {
		Type Type `json:"type"`
	}{Type: t})
}
