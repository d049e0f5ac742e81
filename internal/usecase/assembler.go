package usecase

import (
	"fmt"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
)

// PaddingMode decides what happens to pre-sized slots the decoder never
// filled.
type PaddingMode string

const (
	// PaddingPlaceholder keeps unfilled slots at timestamp 0 with a
	// zero-filled pose, so len(frames) always equals the declared count.
	PaddingPlaceholder PaddingMode = "placeholder"
	// PaddingTruncate cuts the frame list to the frames actually decoded.
	PaddingTruncate PaddingMode = "truncate"
)

func ParsePaddingMode(s string) (PaddingMode, error) {
	switch PaddingMode(s) {
	case PaddingPlaceholder, PaddingTruncate:
		return PaddingMode(s), nil
	case "":
		return PaddingPlaceholder, nil
	default:
		return "", fmt.Errorf("unknown padding mode %q", s)
	}
}

// Assembler fills a pre-sized Result in decode order.
type Assembler struct {
	result  *entity.Result
	next    int
	dropped int
}

func NewAssembler(meta entity.VideoMetadata) *Assembler {
	return &Assembler{result: entity.NewResult(meta)}
}

// Record writes the next slot. Once every declared slot has been written it
// returns false and leaves the result untouched; the frame is counted in
// Dropped and the request still succeeds rather than failing.
func (a *Assembler) Record(timestampMs float64, pose entity.PoseSet) bool {
	if a.next >= len(a.result.Frames) {
		a.dropped++
		return false
	}
	a.result.Frames[a.next] = entity.FrameRecord{Timestamp: timestampMs, Pose: pose}
	a.next++
	return true
}

// Filled is the number of slots written so far.
func (a *Assembler) Filled() int { return a.next }

// Dropped counts frames decoded past the declared frame count.
func (a *Assembler) Dropped() int { return a.dropped }

// Finish returns the assembled result. The assembler must not be used
// afterwards.
func (a *Assembler) Finish(mode PaddingMode) *entity.Result {
	if mode == PaddingTruncate {
		a.result.Frames = a.result.Frames[:a.next]
	}
	return a.result
}
