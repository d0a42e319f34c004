package model

import (
	"fmt"
	"strings"
)

// StageFatalError terminates a run as FAILED. It is raised only when a
// stage produces zero usable output or a collaborator fails outright;
// per-source failures are recorded in RunState instead.
type StageFatalError struct {
	Stage     string
	Message   string
	SubErrors []StageError
}

func (e *StageFatalError) Error() string {
	if len(e.SubErrors) == 0 {
		return fmt.Sprintf("stage %s: %s", e.Stage, e.Message)
	}

	parts := make([]string, 0, len(e.SubErrors))
	for _, sub := range e.SubErrors {
		if sub.SourceID != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", sub.SourceID, sub.Message))
		} else {
			parts = append(parts, sub.Message)
		}
	}
	return fmt.Sprintf("stage %s: %s (%s)", e.Stage, e.Message, strings.Join(parts, "; "))
}

// ValidationError marks a claim or reference that violates an
// invariant. The offending item is dropped and logged, never fatal.
type ValidationError struct {
	ClaimID string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("claim %s: %s", e.ClaimID, e.Reason)
}
