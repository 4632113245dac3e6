package conversation

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrymomot/mymechanic/pkg/chat"
)

const (
	MaxTitleLength = 200
	MaxMessages    = 2*chat.MaxHistoryLength + 2
)

// Vehicle is the car a conversation was about, as picked in the client.
type Vehicle struct {
	Year       string `json:"year,omitempty"`
	Make       string `json:"make,omitempty"`
	Model      string `json:"model,omitempty"`
	EngineType string `json:"engineType,omitempty"`
	EngineSize string `json:"engineSize,omitempty"`
}

func (v Vehicle) IsZero() bool { return v == Vehicle{} }

// Conversation is a saved chat transcript.
type Conversation struct {
	ID        string         `json:"id"`
	UserID    string         `json:"-"`
	Title     string         `json:"title"`
	Vehicle   *Vehicle       `json:"vehicle,omitempty"`
	Messages  []chat.Message `json:"messages"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// SaveInput is what a user submits when saving a chat.
type SaveInput struct {
	Title    string
	Vehicle  *Vehicle
	Messages []chat.Message
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return "", ErrTitleRequired
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return "", ErrTitleTooLong
	}
	return title, nil
}

func validateMessages(messages []chat.Message) error {
	if len(messages) > MaxMessages {
		return ErrTooManyMessages
	}
	for _, m := range messages {
		if !m.Valid() {
			return ErrInvalidMessage
		}
	}
	return nil
}
