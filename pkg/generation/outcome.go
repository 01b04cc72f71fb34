package generation

// Outcome is the tagged result of a generation call: either Success(text) or Failure(err).
// The error is kept for diagnostics only and must not be shown to callers verbatim.
type Outcome struct {
	text string
	err  error
}

func Success(text string) Outcome {
	return Outcome{text: text}
}

func Failure(err error) Outcome {
	if err == nil {
		err = ErrEmptyResponse
	}
	return Outcome{err: err}
}

func (o Outcome) Succeeded() bool {
	return o.err == nil
}

// Text is the generated text; empty for a failure.
func (o Outcome) Text() string {
	return o.text
}

// Err is the failure reason; nil on success.
func (o Outcome) Err() error {
	return o.err
}
