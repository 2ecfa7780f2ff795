package stream

import (
	"time"

	"github.com/temirov/repo2txt/internal/types"
)

// SchemaVersion is stamped on every event.
const SchemaVersion = 1

type EventKind string

const (
	EventKindFilesUpdated       EventKind = "files_updated"
	EventKindAnalysisCompleted  EventKind = "analysis_completed"
	EventKindGenerationProgress EventKind = "generation_progress"
)

// Event is one notification produced by the workspace. Updates is set for
// files_updated, Progress for generation_progress.
type Event struct {
	Version   int                  `json:"version"`
	Kind      EventKind            `json:"kind"`
	Epoch     uint64               `json:"epoch,omitempty"`
	EmittedAt time.Time            `json:"emittedAt,omitempty"`
	Updates   []types.FileUpdate   `json:"updates,omitempty"`
	Progress  *types.ProgressEvent `json:"progress,omitempty"`
}

// FilesUpdated builds a files_updated event for a batch of measurements.
func FilesUpdated(epoch uint64, updates []types.FileUpdate) Event {
	return Event{Kind: EventKindFilesUpdated, Epoch: epoch, Updates: updates}
}

// AnalysisCompleted builds the terminal analyzer event of epoch.
func AnalysisCompleted(epoch uint64) Event {
	return Event{Kind: EventKindAnalysisCompleted, Epoch: epoch}
}

// GenerationProgress builds an export progress event.
func GenerationProgress(progress types.ProgressEvent) Event {
	return Event{Kind: EventKindGenerationProgress, Progress: &progress}
}
