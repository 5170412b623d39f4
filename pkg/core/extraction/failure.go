package extraction

import "fmt"

// FailureKind classifies why an extraction attempt failed.
type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureTimeout   FailureKind = "timeout"
	FailureParse     FailureKind = "parse"
)

// Failure is returned by Engine.Extract when the backend could not produce a metric set.
// Raw holds the backend reply for parse failures so it can be shown for diagnosis.
type Failure struct {
	Kind FailureKind
	Raw  string
	Err  error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case FailureParse:
		return fmt.Sprintf("JSON parsing failed: %v", f.Err)
	case FailureTimeout:
		return fmt.Sprintf("extraction timed out: %v", f.Err)
	default:
		return fmt.Sprintf("extraction backend unavailable: %v", f.Err)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Details returns the diagnostic text shown to the analyst.
func (f *Failure) Details() string {
	if f.Raw != "" {
		return f.Raw
	}
	return "No response from API."
}
