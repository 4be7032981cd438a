package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lexgraph/backend/pkg/jsonrepair"
)

// Decode stages, in the order they are attempted.
const (
	StageStrict  = "strict"
	StageRepair  = "repair"
	StageBracket = "bracket"
)

var (
	// ErrWrapperShape is returned for an object that does not hold exactly one list value.
	ErrWrapperShape = errors.New("wrapper object must hold exactly one list value")
	// ErrNotArray is returned for JSON that is neither an array nor a wrapper object.
	ErrNotArray = errors.New("JSON value is neither an array nor a wrapper object")
	// ErrNoBracketedArray is returned when the raw text contains no [...] span.
	ErrNoBracketedArray = errors.New("no bracketed array in response")
)

var outerArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// StageError is the failure of one decode stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// DecodeError reports every stage that was attempted and why it failed.
type DecodeError struct {
	Stages []*StageError
}

func (e *DecodeError) Error() string {
	parts := make([]string, 0, len(e.Stages))
	for _, s := range e.Stages {
		parts = append(parts, s.Error())
	}
	return strings.Join(parts, "; ")
}

func (e *DecodeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Stages))
	for _, s := range e.Stages {
		errs = append(errs, s)
	}
	return errs
}

// decodeItems runs the strict, repair and bracket stages in turn and returns the
// candidate items from the first stage that yields a usable array.
func decodeItems(raw string) ([]any, string, error) {
	stages := []struct {
		name string
		fn   func(string) ([]any, error)
	}{
		{StageStrict, decodeStrict},
		{StageRepair, decodeRepaired},
		{StageBracket, decodeBracket},
	}

	decodeErr := &DecodeError{}
	for _, stage := range stages {
		items, err := stage.fn(raw)
		if err == nil {
			return items, stage.name, nil
		}
		decodeErr.Stages = append(decodeErr.Stages, &StageError{Stage: stage.name, Err: err})
	}
	return nil, "", decodeErr
}

func decodeStrict(raw string) ([]any, error) {
	v, err := unmarshal(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return unwrap(v)
}

func decodeRepaired(raw string) ([]any, error) {
	repaired, err := jsonrepair.Repair(raw)
	if err != nil {
		return nil, err
	}
	v, err := unmarshal(repaired)
	if err != nil {
		return nil, err
	}
	return unwrap(v)
}

func decodeBracket(raw string) ([]any, error) {
	match := outerArrayPattern.FindString(raw)
	if match == "" {
		return nil, ErrNoBracketedArray
	}
	v, err := unmarshal(match)
	if err != nil {
		return nil, err
	}
	return unwrap(v)
}

func unmarshal(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// unwrap accepts an array as is and an object whose only list-valued entry is the array.
func unwrap(v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		var lists [][]any
		for _, val := range t {
			if l, ok := val.([]any); ok {
				lists = append(lists, l)
			}
		}
		if len(lists) != 1 {
			return nil, fmt.Errorf("%w, found %d", ErrWrapperShape, len(lists))
		}
		return lists[0], nil
	default:
		return nil, ErrNotArray
	}
}
