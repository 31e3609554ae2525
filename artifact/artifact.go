package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnavailable is returned by Require when an artifact is missing or failed.
var ErrUnavailable = errors.New("artifact unavailable")

// Failure is the descriptor stored in place of a value when a collector fails.
type Failure struct {
	Succeeded    bool   `json:"succeeded"`
	ErrorMessage string `json:"errorMessage"`
}

// Artifact is one named piece of data collected for a target. Exactly one of
// Value or Failure is meaningful.
type Artifact struct {
	Value   any
	Failure *Failure
}

// Of wraps a collected value.
func Of(v any) Artifact {
	return Artifact{Value: v}
}

// Fail builds a failure-shaped artifact from an error.
func Fail(err error) Artifact {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Artifact{Failure: &Failure{ErrorMessage: msg}}
}

// Failed reports whether the artifact carries a failure descriptor.
func (a Artifact) Failed() bool {
	return a.Failure != nil
}

func (a Artifact) MarshalJSON() ([]byte, error) {
	if a.Failure != nil {
		return json.Marshal(a.Failure)
	}
	return json.Marshal(a.Value)
}

// Map holds the artifacts gathered for a single target, keyed by collector name.
type Map map[string]Artifact

// Lookup returns the artifact registered under name.
func (m Map) Lookup(name string) (Artifact, bool) {
	a, ok := m[name]
	return a, ok
}

// Counts returns how many artifacts succeeded and failed.
func (m Map) Counts() (succeeded, failed int) {
	for _, a := range m {
		if a.Failed() {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}

// Require fetches a successful artifact of type T. Missing, failed and
// wrongly-typed artifacts all yield an error wrapping ErrUnavailable.
func Require[T any](m Map, name string) (T, error) {
	var zero T
	a, ok := m.Lookup(name)
	if !ok {
		return zero, fmt.Errorf("%w: %s was not collected", ErrUnavailable, name)
	}
	if a.Failed() {
		return zero, fmt.Errorf("%w: %s failed: %s", ErrUnavailable, name, a.Failure.ErrorMessage)
	}
	v, ok := a.Value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s has unexpected type %T", ErrUnavailable, name, a.Value)
	}
	return v, nil
}
