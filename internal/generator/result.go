package generator

import (
	"github.com/alexanderramin/aicanvas/internal/page"
	"github.com/alexanderramin/aicanvas/internal/schema"
)

// Kind classifies a failed generation.
type Kind string

const (
	KindConfiguration    Kind = "configuration"
	KindInput            Kind = "input"
	KindEmptyResponse    Kind = "empty_response"
	KindMalformedJSON    Kind = "malformed_json"
	KindSchemaValidation Kind = "schema_validation"
	KindCancelled        Kind = "cancelled"
	KindTransport        Kind = "transport"
)

// Failure messages surfaced to callers.
const (
	MsgMissingCredential = "Missing model API key"
	MsgEmptyPrompt       = "User prompt cannot be empty"
	MsgEmptyResponse     = "Model response missing message content"
	MsgInvalidJSON       = "Assistant returned invalid JSON: "
	MsgSchemaValidation  = "Schema validation failed:\n"
	MsgCancelled         = "Request was cancelled"
	MsgTransport         = "Model request failed: "
)

// Result is the outcome of one generation. On success OK is true and Page
// holds the validated document; otherwise Error and Kind describe the
// failure. Raw is set only when the model replied with text that failed
// parsing or validation.
type Result struct {
	OK               bool                     `json:"ok"`
	Page             *page.Page               `json:"page,omitempty"`
	Error            string                   `json:"error,omitempty"`
	Kind             Kind                     `json:"kind,omitempty"`
	Raw              string                   `json:"raw,omitempty"`
	ValidationErrors []schema.StructuredError `json:"validationErrors,omitempty"`
	Warnings         []schema.StructuredError `json:"warnings,omitempty"`
}

// Retryable reports whether re-prompting may succeed without operator
// action.
func (r Result) Retryable() bool {
	switch r.Kind {
	case KindEmptyResponse, KindMalformedJSON, KindSchemaValidation, KindTransport:
		return true
	default:
		return false
	}
}

// Outcome returns the kind, or "success".
func (r Result) Outcome() string {
	if r.OK {
		return "success"
	}
	return string(r.Kind)
}

func failure(kind Kind, msg string) Result {
	return Result{Kind: kind, Error: msg}
}
