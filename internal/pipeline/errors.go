package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var ErrAlreadyRunning = errors.New("pipeline is already running")

// SourceFetchError is one extractor's failure. It is collected, never returned from
// the discovery stage on its own.
type SourceFetchError struct {
	Sources []string
	Err     error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("%s: %v", strings.Join(e.Sources, ","), e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// StageError marks a run as failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
