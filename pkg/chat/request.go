package chat

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxMessageLength = 5000
	MaxHistoryLength = 50
)

// Request is one user message with the conversation so far.
type Request struct {
	UserID  string
	PlanID  string
	Message string
	History []Message
}

// Validate checks the message and history bounds. Errors wrap both
// ErrInvalidRequest and the specific failure.
func (r Request) Validate() error {
	_, clean := ExtractVehicle(r.Message)
	switch {
	case strings.TrimSpace(r.Message) == "" || clean == "":
		return errors.Join(ErrInvalidRequest, ErrMessageRequired)
	case utf8.RuneCountInString(r.Message) > MaxMessageLength:
		return errors.Join(ErrInvalidRequest, ErrMessageTooLong)
	case len(r.History) > MaxHistoryLength:
		return errors.Join(ErrInvalidRequest, ErrHistoryTooLong)
	}
	for _, m := range r.History {
		if !m.Valid() {
			return errors.Join(ErrInvalidRequest, ErrInvalidHistory)
		}
	}
	return nil
}

// vehicle returns the vehicle tagged in the message, or the most recent one
// tagged earlier in the conversation.
func (r Request) vehicle() string {
	if v, _ := ExtractVehicle(r.Message); v != "" {
		return v
	}
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Role != RoleUser {
			continue
		}
		if v, _ := ExtractVehicle(r.History[i].Content); v != "" {
			return v
		}
	}
	return ""
}

// conversation is the history plus the new message, vehicle tags removed.
func (r Request) conversation() []Message {
	out := make([]Message, 0, len(r.History)+1)
	for _, m := range r.History {
		if m.Role == RoleUser {
			_, m.Content = ExtractVehicle(m.Content)
		}
		out = append(out, m)
	}
	_, clean := ExtractVehicle(r.Message)
	return append(out, Message{Role: RoleUser, Content: clean})
}
