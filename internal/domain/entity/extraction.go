package entity

import (
	"time"

	"github.com/google/uuid"
)

type Stage string

const (
	StageIdle        Stage = "IDLE"
	StageDownloading Stage = "DOWNLOADING"
	StageDecoding    Stage = "DECODING"
	StageAssembling  Stage = "ASSEMBLING"
	StageResponding  Stage = "RESPONDING"
	StageFailed      Stage = "ERROR"
)

// Extraction tracks one request through the pipeline. It lives only for the
// duration of the request.
type Extraction struct {
	ID             uuid.UUID
	VideoURL       string
	Stage          Stage
	FailedStage    Stage
	DeclaredFrames int
	DecodedFrames  int
	AbsentPoses    int
	DroppedFrames  int
	ErrorMessage   string
	StartedAt      time.Time
	UpdatedAt      time.Time
	FinishedAt     *time.Time
}

func NewExtraction(videoURL string) *Extraction {
	now := time.Now().UTC()
	return &Extraction{
		ID:        uuid.New(),
		VideoURL:  videoURL,
		Stage:     StageIdle,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the extraction to the next stage. An extraction in
// StageFailed stays there.
func (e *Extraction) Advance(stage Stage) {
	if e.Stage == StageFailed {
		return
	}
	e.Stage = stage
	e.UpdatedAt = time.Now().UTC()
}

func (e *Extraction) MarkResponding() {
	e.Advance(StageResponding)
	now := e.UpdatedAt
	e.FinishedAt = &now
}

func (e *Extraction) MarkFailed(errMsg string) {
	if e.Stage != StageFailed {
		e.FailedStage = e.Stage
	}
	now := time.Now().UTC()
	e.Stage = StageFailed
	e.ErrorMessage = errMsg
	e.UpdatedAt = now
	e.FinishedAt = &now
}

func (e *Extraction) Failed() bool {
	return e.Stage == StageFailed
}

func (e *Extraction) Duration() time.Duration {
	if e.FinishedAt == nil {
		return time.Since(e.StartedAt)
	}
	return e.FinishedAt.Sub(e.StartedAt)
}
