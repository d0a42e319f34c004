package model

import "time"

// RunStatus is the pipeline run lifecycle state
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunCrawling   RunStatus = "crawling"
	RunExtracting RunStatus = "extracting"
	RunGenerating RunStatus = "generating"
	RunPersisting RunStatus = "persisting"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunCancelled  RunStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	}
	return false
}

// statusRank orders the forward progression of a run. FAILED and
// CANCELLED sit outside the progression and are reachable from any
// non-terminal state.
var statusRank = map[RunStatus]int{
	RunPending:    0,
	RunCrawling:   1,
	RunExtracting: 2,
	RunGenerating: 3,
	RunPersisting: 4,
	RunCompleted:  5,
}

// Before reports whether s precedes other in the forward progression.
// Terminal side states (failed, cancelled) are never Before anything.
func (s RunStatus) Before(other RunStatus) bool {
	a, okA := statusRank[s]
	b, okB := statusRank[other]
	return okA && okB && a < b
}

// StageProgress holds per-stage attempt counters
type StageProgress struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// StageError is one entry of a run's aggregated error summary
type StageError struct {
	Stage    string `json:"stage"`
	SourceID string `json:"source_id,omitempty"`
	Message  string `json:"message"`
}

// RunEvent records one status transition for deterministic replay
type RunEvent struct {
	From RunStatus `json:"from"`
	To   RunStatus `json:"to"`
	At   time.Time `json:"at"`
	Note string    `json:"note,omitempty"`
}

// RunState is the queryable snapshot of one pipeline execution. The
// orchestrator is its only writer; everyone else sees copies.
type RunState struct {
	ID          string                   `json:"id"`
	Status      RunStatus                `json:"status"`
	Progress    map[string]StageProgress `json:"progress"`
	Errors      []StageError             `json:"errors,omitempty"`
	FailedStage string                   `json:"failed_stage,omitempty"`
	Events      []RunEvent               `json:"events,omitempty"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt time.Time                `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to hand outside the orchestrator
func (r RunState) Clone() RunState {
	out := r
	out.Progress = make(map[string]StageProgress, len(r.Progress))
	for stage, p := range r.Progress {
		out.Progress[stage] = p
	}
	out.Errors = append([]StageError(nil), r.Errors...)
	out.Events = append([]RunEvent(nil), r.Events...)
	return out
}
