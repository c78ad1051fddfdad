package llm

import "errors"

var (
	// ErrMissingCredential indicates no API key was supplied for a call.
	ErrMissingCredential = errors.New("missing model api key")

	// ErrUnknownProvider indicates the configured provider is not supported.
	ErrUnknownProvider = errors.New("unknown llm provider")

	// ErrUnavailable indicates the model endpoint is unreachable.
	ErrUnavailable = errors.New("llm endpoint unavailable")

	// ErrTimeout indicates the request exceeded its deadline.
	ErrTimeout = errors.New("llm request timed out")

	// ErrStatus indicates the endpoint answered with a non-2xx status.
	ErrStatus = errors.New("llm endpoint returned status")

	// ErrInvalidOutput indicates the reply is not exactly one JSON value.
	ErrInvalidOutput = errors.New("invalid llm output format")
)
