// Package inference holds the error taxonomy and posterior summary helpers
// shared by the survival, changepoint and resample model families.
package inference

import "fmt"

// InsufficientDataError indicates that too few observations survived
// preparation to fit a model. It is recoverable at per-subject granularity:
// callers should skip the subject and continue, not crash the pipeline.
type InsufficientDataError struct {
	Available int
	Required  int
	Detail    string
}

func (e *InsufficientDataError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("insufficient data: %s (have %d, need %d)", e.Detail, e.Available, e.Required)
	}
	return fmt.Sprintf("insufficient data: have %d, need %d", e.Available, e.Required)
}

// ModelNotFittedError indicates prediction or detection was invoked before a
// successful fit. This is a programming error and must not be caught and
// ignored.
type ModelNotFittedError struct {
	Model string
}

func (e *ModelNotFittedError) Error() string {
	return fmt.Sprintf("%s: model must be fitted before prediction", e.Model)
}
