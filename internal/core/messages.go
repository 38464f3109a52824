package core

import "errors"

// User-facing canned replies.
const (
	MsgTimeout         = "⏰ The AI is taking too long to respond. Please try a shorter question or wait a moment."
	MsgQuotaError      = "🚫 Service temporarily unavailable due to high demand. Please try again in a few minutes."
	MsgGeneralError    = "❌ An error occurred while processing your request. Please try again."
	MsgUnexpectedError = "❌ An unexpected error occurred. Please try again later."
	MsgNoResponse      = "I apologize, but I couldn't generate a response. Please try again."
	MsgQueueTimeout    = "⏰ Sorry, your request timed out. Please try again."
)

// UserMessage maps an error to the fixed text shown to the user. Raw
// provider error text is never returned.
func UserMessage(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "⚠️ " + ve.Message
	case errors.Is(err, ErrRequestTimeout):
		return MsgTimeout
	case errors.Is(err, ErrQuotaExceeded):
		return MsgQuotaError
	default:
		return MsgNoResponse
	}
}
