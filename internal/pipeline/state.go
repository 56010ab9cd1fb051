package pipeline

import (
	"time"
)

type Stage string

const (
	StageIdle      Stage = "idle"
	StageProfile   Stage = "profile"
	StageDiscover  Stage = "discover"
	StageImport    Stage = "import"
	StageScore     Stage = "score"
	StageSelect    Stage = "select"
	StageProcess   Stage = "process"
	StageNotify    Stage = "notify"
	StageCompleted Stage = "completed"
	StageCancelled Stage = "cancelled"
	StageFailed    Stage = "failed"
)

// Progress is a point-in-time view of the running pipeline.
type Progress struct {
	Step           Stage     `json:"step"`
	Detail         string    `json:"detail,omitempty"`
	SourcesTotal   int       `json:"sourcesTotal"`
	SourcesDone    int       `json:"sourcesDone"`
	JobsDiscovered int       `json:"jobsDiscovered"`
	JobsCreated    int       `json:"jobsCreated"`
	JobsSkipped    int       `json:"jobsSkipped"`
	TotalToScore   int       `json:"totalToScore"`
	JobsScored     int       `json:"jobsScored"`
	TotalToProcess int       `json:"totalToProcess"`
	JobsProcessed  int       `json:"jobsProcessed"`
	CurrentJob     string    `json:"currentJob,omitempty"`
	StartedAt      time.Time `json:"startedAt,omitzero"`
	UpdatedAt      time.Time `json:"updatedAt,omitzero"`
}

type Status struct {
	IsRunning       bool     `json:"isRunning"`
	PipelineRunID   *string  `json:"pipelineRunId"`
	CancelRequested bool     `json:"cancelRequested"`
	Progress        Progress `json:"progress"`
}

type CancelResult struct {
	Accepted         bool    `json:"accepted"`
	AlreadyRequested bool    `json:"alreadyRequested"`
	PipelineRunID    *string `json:"pipelineRunId"`
}

// runState is owned by one Orchestrator and guarded by its mutex.
type runState struct {
	running         bool
	runID           *string
	cancelRequested bool
	progress        Progress
}

func (o *Orchestrator) acquire(now time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.running {
		return false
	}
	o.state = runState{
		running:  true,
		progress: Progress{Step: StageProfile, StartedAt: now, UpdatedAt: now},
	}
	return true
}

func (o *Orchestrator) release(final Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.running = false
	o.state.cancelRequested = false
	o.state.progress.Step = final
	o.state.progress.CurrentJob = ""
	o.state.progress.UpdatedAt = o.now()
}

func (o *Orchestrator) setRunID(id string) {
	o.mu.Lock()
	o.state.runID = &id
	o.mu.Unlock()
}

func (o *Orchestrator) updateProgress(fn func(p *Progress)) {
	o.mu.Lock()
	fn(&o.state.progress)
	o.state.progress.UpdatedAt = o.now()
	o.mu.Unlock()
}

// RequestCancel asks the running pipeline to stop at its next checkpoint. Nothing is
// accepted when no pipeline is running.
func (o *Orchestrator) RequestCancel() CancelResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.state.running {
		return CancelResult{Accepted: false}
	}
	res := CancelResult{Accepted: true, PipelineRunID: copyID(o.state.runID)}
	if o.state.cancelRequested {
		res.AlreadyRequested = true
		return res
	}
	o.state.cancelRequested = true
	o.logger.Info("pipeline cancellation requested", "run_id", deref(o.state.runID))
	return res
}

func (o *Orchestrator) IsCancelRequested() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.cancelRequested
}

func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.running
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		IsRunning:       o.state.running,
		PipelineRunID:   copyID(o.state.runID),
		CancelRequested: o.state.cancelRequested,
		Progress:        o.state.progress,
	}
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func deref(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
