package models

type JobStatus string

const (
	StatusDiscovered JobStatus = "discovered"
	StatusProcessing JobStatus = "processing"
	StatusReady      JobStatus = "ready"
	StatusApplied    JobStatus = "applied"
	StatusInProgress JobStatus = "in_progress"
	StatusSkipped    JobStatus = "skipped"
	StatusExpired    JobStatus = "expired"
)

var jobTransitions = map[JobStatus][]JobStatus{
	StatusDiscovered: {StatusProcessing, StatusReady, StatusSkipped, StatusExpired},
	// processing falls back to discovered when tailoring fails
	StatusProcessing: {StatusReady, StatusDiscovered},
	StatusReady:      {StatusApplied, StatusSkipped, StatusExpired},
	StatusApplied:    {StatusInProgress},
}

func (s JobStatus) Valid() bool {
	switch s {
	case StatusDiscovered, StatusProcessing, StatusReady, StatusApplied,
		StatusInProgress, StatusSkipped, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunCancelled || s == RunFailed
}
