package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the final state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Pipeline names used in logs, metrics and run summaries.
const (
	PipelineSusceptibility = "susceptibility"
	PipelineNDWI           = "ndwi"
	PipelineLoss           = "loss"
	PipelineSimulate       = "simulate"
)

// RunSummary describes one batch run.
type RunSummary struct {
	ID       string        `json:"id"`
	Pipeline string        `json:"pipeline"`
	Status   RunStatus     `json:"status"`
	Outputs  []string      `json:"outputs,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// NewRun starts a run with a fresh id.
func NewRun(pipeline string) RunSummary {
	return RunSummary{
		ID:       uuid.NewString(),
		Pipeline: pipeline,
		Status:   RunStatusRunning,
		Started:  time.Now().UTC(),
	}
}

// Finish stamps the duration and final status. A nil err means complete.
func (r *RunSummary) Finish(err error) {
	r.Duration = time.Since(r.Started)
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunStatusComplete
}
