package domain

import "errors"

var (
	// ErrChannelClosed is returned when a command is sent while the session
	// channel is not open.
	ErrChannelClosed = errors.New("session channel is closed")
	// ErrInvalidStage is returned when a host command is not valid in the
	// current session stage.
	ErrInvalidStage = errors.New("command not valid in current stage")
	// ErrNotLastQuestion rejects finish while earlier questions remain.
	ErrNotLastQuestion = errors.New("current question is not the last")
	// ErrNotEnoughParticipants rejects start below the configured minimum.
	ErrNotEnoughParticipants = errors.New("not enough participants to start")
	// ErrMalformedMessage indicates a frame that is not a valid message envelope.
	ErrMalformedMessage = errors.New("malformed session message")
	// ErrUnknownMessageType indicates an envelope type outside the known set.
	ErrUnknownMessageType = errors.New("unknown session message type")
	// ErrReconnectExhausted is surfaced after all bounded reconnect attempts
	// for a dropped session channel fail.
	ErrReconnectExhausted = errors.New("session channel reconnect attempts exhausted")
	// ErrNotFound indicates the platform API has no such resource.
	ErrNotFound = errors.New("resource not found")
	// ErrResultsNotFound indicates no archived results exist for a session.
	ErrResultsNotFound = errors.New("archived results not found")
)
