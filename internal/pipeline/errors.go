package pipeline

import (
	"errors"
	"fmt"

	"github.com/gamesight/training-pipeline/internal/storage"
)

var (
	// ErrUnknownStep is returned when the entry step number matches no stage
	ErrUnknownStep = errors.New("unknown pipeline step")

	// ErrStepFailed is returned when a step fails without a more specific cause
	ErrStepFailed = errors.New("pipeline step failed")
)

// PreconditionError reports an input missing before a step touched
// anything, together with how to produce it.
type PreconditionError struct {
	Missing string
	Path    string
	Remedy  string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("missing %s at %s (%s)", e.Missing, e.Path, e.Remedy)
}

// requireFile returns a failed result when no regular file exists at
// path, nil otherwise.
func requireFile(path, what, remedy string) *StepResult {
	ok, err := storage.FileExists(path)
	if err != nil {
		return &StepResult{Status: StatusFailed, Err: err}
	}
	if !ok {
		return &StepResult{
			Status: StatusFailed,
			Err:    &PreconditionError{Missing: what, Path: path, Remedy: remedy},
		}
	}
	return nil
}

// requireDir returns a failed result when no directory exists at path,
// nil otherwise.
func requireDir(path, what, remedy string) *StepResult {
	ok, err := storage.DirExists(path)
	if err != nil {
		return &StepResult{Status: StatusFailed, Err: err}
	}
	if !ok {
		return &StepResult{
			Status: StatusFailed,
			Err:    &PreconditionError{Missing: what, Path: path, Remedy: remedy},
		}
	}
	return nil
}
