package entity

import (
	"encoding/json"
	"fmt"
)

// LandmarkCount is the size of the MediaPipe Pose landmark vocabulary. Every
// detected PoseSet carries exactly this many landmarks.
const LandmarkCount = 33

// VideoMetadata is what the decoder declares about a stream before the first
// frame is read.
type VideoMetadata struct {
	FrameRate          float64
	Width              int
	Height             int
	DeclaredFrameCount int
}

// Landmark is one estimated body keypoint. X, Y and Z keep the estimator's
// native units.
type Landmark struct {
	X          float64
	Y          float64
	Z          float64
	Visibility float64
}

// MarshalJSON encodes the landmark as [x, y, z, visibility].
func (l Landmark) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{l.X, l.Y, l.Z, l.Visibility})
}

func (l *Landmark) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("landmark: want 4 values, got %d", len(v))
	}
	l.X, l.Y, l.Z, l.Visibility = v[0], v[1], v[2], v[3]
	return nil
}

// PoseSet is the ordered landmark list for one frame. A nil PoseSet means the
// estimator found no pose and serializes as null.
type PoseSet []Landmark

// NewPlaceholderPose returns an all-zero PoseSet of LandmarkCount entries.
func NewPlaceholderPose() PoseSet {
	return make(PoseSet, LandmarkCount)
}

// Detected reports whether the set holds a pose.
func (p PoseSet) Detected() bool {
	return p != nil
}

type FrameRecord struct {
	Timestamp float64 `json:"timestamp"`
	Pose      PoseSet `json:"pose"`
}

// Result is the response body of a successful extraction.
type Result struct {
	FrameRate float64       `json:"frame_rate"`
	Size      [2]int        `json:"size"`
	Frames    []FrameRecord `json:"frames"`
}

// NewResult pre-sizes the frame list to the declared frame count, each slot
// holding a zero timestamp and a zero-filled pose.
func NewResult(meta VideoMetadata) *Result {
	n := meta.DeclaredFrameCount
	if n < 0 {
		n = 0
	}
	frames := make([]FrameRecord, n)
	for i := range frames {
		frames[i] = FrameRecord{Timestamp: 0, Pose: NewPlaceholderPose()}
	}
	return &Result{
		FrameRate: meta.FrameRate,
		Size:      [2]int{meta.Width, meta.Height},
		Frames:    frames,
	}
}
