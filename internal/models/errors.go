package models

import "errors"

// Sentinel errors shared across the service layers. Callers match with
// errors.Is; wrapping sites add the operation-specific detail.
var (
	// ErrInvalidArgument marks input that fails domain validation, such
	// as an empty log entry or an unknown task status.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedPayload marks a structurally broken payload, such as
	// tool arguments that do not parse as a JSON object.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidDeadline marks a deadline string no supported layout
	// could parse.
	ErrInvalidDeadline = errors.New("invalid deadline")

	// ErrNotFound marks a lookup that matched no row for the user.
	ErrNotFound = errors.New("not found")

	// ErrUnknownTool marks a model tool call naming an unregistered tool.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrModelUnavailable marks a failed model invocation: transport
	// error, non-2xx response or an empty candidate list.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrTranscriptionFailed marks a failed audio transcription.
	ErrTranscriptionFailed = errors.New("transcription failed")
)
