package entity

import "github.com/google/uuid"

// ExtractionRequest is the inbound HTTP body.
type ExtractionRequest struct {
	VideoURL string `json:"video_url"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ExtractionEvent is the summary published after each extraction finishes.
type ExtractionEvent struct {
	RequestID     uuid.UUID `json:"request_id"`
	VideoURL      string    `json:"video_url"`
	Status        Stage     `json:"status"`
	FailedStage   Stage     `json:"failed_stage,omitempty"`
	FrameRate     float64   `json:"frame_rate,omitempty"`
	DeclaredCount int       `json:"declared_frame_count"`
	DecodedFrames int       `json:"decoded_frames"`
	AbsentPoses   int       `json:"absent_poses"`
	DroppedFrames int       `json:"dropped_frames,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
}
