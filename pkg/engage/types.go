package engage

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/pattern-space/pkg/conversation"
	"github.com/go-go-golems/pattern-space/pkg/prompt"
)

// Request is a validated engagement.
type Request struct {
	RequestID  string
	Coordinate string
	Mode       prompt.Mode
	Query      string
	History    []conversation.Turn
	Domain     string
	Voice      string
}

// Response is returned for every structurally valid request, generated or not.
type Response struct {
	Coordinate string `json:"coordinate"`
	Voice      string `json:"voice"`
}

// RequestBody is the JSON accepted on POST /engage. Pointers distinguish absent fields from
// empty ones: an empty coordinate is accepted, a missing one is not.
type RequestBody struct {
	Coordinate          *string             `json:"coordinate"`
	Type                *string             `json:"type"`
	Query               *string             `json:"query,omitempty"`
	ConversationHistory []conversation.Turn `json:"conversation_history,omitempty"`
	Domain              string              `json:"domain,omitempty"`
	Voice               string              `json:"voice,omitempty"`
}

// InputError rejects a request before any generation is attempted.
type InputError struct {
	Status    int
	ClientMsg string
	Err       error
}

func (e *InputError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.ClientMsg + ": " + e.Err.Error()
	}
	return e.ClientMsg
}

func (e *InputError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func badRequest(msg string, err error) *InputError {
	return &InputError{Status: http.StatusBadRequest, ClientMsg: msg, Err: err}
}

// ToRequest checks presence of the required fields and the mode.
func (b RequestBody) ToRequest() (Request, error) {
	if b.Coordinate == nil {
		return Request{}, badRequest("missing coordinate", nil)
	}
	if b.Type == nil || strings.TrimSpace(*b.Type) == "" {
		return Request{}, badRequest("missing type", nil)
	}
	mode, err := prompt.ParseMode(*b.Type)
	if err != nil {
		return Request{}, badRequest(`type must be "manifest" or "explore"`, err)
	}

	req := Request{
		Coordinate: *b.Coordinate,
		Mode:       mode,
		History:    b.ConversationHistory,
		Domain:     b.Domain,
		Voice:      b.Voice,
	}
	if b.Query != nil {
		req.Query = *b.Query
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate is also applied by Service.Engage so that callers bypassing HTTP get the same checks.
func (r Request) Validate() error {
	if _, err := prompt.ParseMode(string(r.Mode)); err != nil {
		return badRequest(`type must be "manifest" or "explore"`, err)
	}
	if r.Mode == prompt.Explore && r.Query == "" {
		return badRequest("query is required when type is explore", prompt.ErrMissingQuery)
	}
	return nil
}

// IsInputError reports whether err rejects the request, and returns it.
func IsInputError(err error) (*InputError, bool) {
	var ie *InputError
	if errors.As(err, &ie) && ie != nil {
		return ie, true
	}
	return nil, false
}
