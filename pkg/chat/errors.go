package chat

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid chat request")
	ErrModel          = errors.New("language model request failed")
	ErrEmptyReply     = errors.New("language model returned no text")
	ErrMissingAPIKey  = errors.New("language model API key is required")
	ErrHistoryWrite   = errors.New("failed to write chat history")
	ErrServiceClosed  = errors.New("chat service is closed")
)

var (
	ErrMessageRequired = errors.New("message is required")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrHistoryTooLong  = errors.New("conversation history exceeds maximum length")
	ErrInvalidHistory  = errors.New("conversation history contains an invalid message")
)
