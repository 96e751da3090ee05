package chat

import "errors"

// Sentinel errors for a chat turn. Check with errors.Is(); map to
// user-facing text with UserMessage. All of these are terminal for the
// current turn only: messages already committed to the conversation store
// remain committed, and a subsequent turn may start normally.
var (
	// ErrEmptyMessage indicates the submitted text was empty after
	// trimming. No network call is made.
	ErrEmptyMessage = errors.New("empty message")

	// ErrRateLimited indicates the chat request was rejected with a 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates the chat request was rejected with a 402.
	ErrUnavailable = errors.New("service unavailable")

	// ErrRequestFailed indicates any other non-success response to the
	// initiating chat request.
	ErrRequestFailed = errors.New("chat request failed")

	// ErrConnection indicates the stream broke mid-turn (connection drop,
	// caller abandoning the transport, context cancellation).
	ErrConnection = errors.New("connection to assistant lost")
)

// UserMessage maps a turn error to the text shown to the end user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "I'm getting too many requests right now. Please try again in a moment."
	case errors.Is(err, ErrUnavailable):
		return "Service is temporarily unavailable. Please try again later."
	case errors.Is(err, ErrConnection):
		return "Could not reach the assistant. Please check your connection and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
