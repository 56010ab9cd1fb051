// Package jobaction applies one action to a batch of jobs and reports per-job results,
// either as a single tally or as an ordered event stream.
package jobaction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/justsurfingit/jobops-pipeline/internal/models"
)

type Action string

const (
	ActionSkip        Action = "skip"
	ActionMoveToReady Action = "move_to_ready"
	ActionRescore     Action = "rescore"
)

// MaxJobIDs bounds a single batch.
const MaxJobIDs = 100

func (a Action) Valid() bool {
	switch a {
	case ActionSkip, ActionMoveToReady, ActionRescore:
		return true
	}
	return false
}

var ErrInvalidRequest = errors.New("invalid job action request")

// RequestError rejects a whole batch before any job is touched.
type RequestError struct {
	Reason string
	JobID  string
	Status models.JobStatus
}

func (e *RequestError) Error() string {
	if e.JobID == "" {
		return e.Reason
	}
	if e.Status == "" {
		return fmt.Sprintf("job %s: %s", e.JobID, e.Reason)
	}
	return fmt.Sprintf("job %s (%s): %s", e.JobID, e.Status, e.Reason)
}

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

type Request struct {
	Action Action   `json:"action"`
	JobIDs []string `json:"jobIds"`
}

// normalize validates the shape of the request and returns the deduplicated ids in
// first-seen order.
func (r Request) normalize() ([]string, error) {
	if !r.Action.Valid() {
		return nil, &RequestError{Reason: fmt.Sprintf("unknown action %q", r.Action)}
	}
	if len(r.JobIDs) > MaxJobIDs {
		return nil, &RequestError{Reason: fmt.Sprintf("at most %d jobs per action, got %d", MaxJobIDs, len(r.JobIDs))}
	}
	ids := make([]string, 0, len(r.JobIDs))
	seen := make(map[string]struct{}, len(r.JobIDs))
	for _, id := range r.JobIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, &RequestError{Reason: "job ids must not be empty"}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, &RequestError{Reason: "at least one job id is required"}
	}
	return ids, nil
}

func CanSkip(s models.JobStatus) bool {
	return s == models.StatusDiscovered || s == models.StatusReady
}

func CanMoveToReady(s models.JobStatus) bool {
	return s == models.StatusDiscovered
}

// CanRescore allows anything but a job whose tailoring is in flight.
func CanRescore(s models.JobStatus) bool {
	return s != models.StatusProcessing
}

// Eligible checks the action's status predicate and returns a user-facing reason when
// the job is not eligible.
func (a Action) Eligible(s models.JobStatus) (string, bool) {
	switch a {
	case ActionSkip:
		return "only discovered or ready jobs can be skipped", CanSkip(s)
	case ActionMoveToReady:
		return "only discovered jobs can be moved to ready", CanMoveToReady(s)
	case ActionRescore:
		return "jobs being processed cannot be rescored", CanRescore(s)
	}
	return fmt.Sprintf("unknown action %q", a), false
}
