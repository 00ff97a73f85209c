package core

import "fmt"

// Status is the lifecycle state of a paper. A paper is created in
// StatusQueued and advances one state per completed pipeline stage;
// StatusFailed is reachable from any non-terminal state. StatusReady and
// StatusFailed are terminal for a given internal paper ID.
type Status int

const (
	StatusQueued Status = iota + 1
	StatusMetadata
	StatusParsed
	StatusExtracted
	StatusReady
	StatusFailed
)

var statusNames = map[Status]string{
	StatusQueued:    "queued",
	StatusMetadata:  "metadata",
	StatusParsed:    "parsed",
	StatusExtracted: "extracted",
	StatusReady:     "ready",
	StatusFailed:    "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStatus maps a status name back to its Status.
func ParseStatus(name string) (Status, bool) {
	for s, n := range statusNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	switch s {
	case StatusQueued:
		return next == StatusMetadata
	case StatusMetadata:
		return next == StatusParsed
	case StatusParsed:
		return next == StatusExtracted
	case StatusExtracted:
		return next == StatusReady
	}
	return false
}

// Transition returns next if the move from s is legal, or an error wrapping
// ErrIllegalTransition otherwise.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, next)
	}
	return next, nil
}

// Stage is one step of the ingestion pipeline.
type Stage int

const (
	StageMetadata Stage = iota + 1
	StageContent
	StageExtraction
	StageEmbedding
)

var stageNames = map[Stage]string{
	StageMetadata:   "metadata",
	StageContent:    "content",
	StageExtraction: "extraction",
	StageEmbedding:  "embedding",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStage maps a stage name back to its Stage.
func ParseStage(name string) (Stage, bool) {
	for s, n := range stageNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// Next returns the stage that follows s in the pipeline chain, and false
// after the final stage.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageMetadata:
		return StageContent, true
	case StageContent:
		return StageExtraction, true
	case StageExtraction:
		return StageEmbedding, true
	}
	return 0, false
}

// Completed returns the paper status reached when stage s succeeds.
func (s Stage) Completed() Status {
	switch s {
	case StageMetadata:
		return StatusMetadata
	case StageContent:
		return StatusParsed
	case StageExtraction:
		return StatusExtracted
	case StageEmbedding:
		return StatusReady
	}
	return 0
}
