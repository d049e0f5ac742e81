package mediapipe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
	"github.com/vmihailenco/msgpack/v5"
)

// maxMessageSize bounds a single worker response.
const maxMessageSize = 16 << 20

var errProtocol = errors.New("pose worker protocol error")

// poseRequest is written to the worker's stdin for every frame.
type poseRequest struct {
	Seq       int    `msgpack:"seq"`
	Width     int    `msgpack:"width"`
	Height    int    `msgpack:"height"`
	FrameData []byte `msgpack:"frame_data"`
}

// poseResponse is read back from the worker's stdout. Landmarks is nil when
// no pose was found.
type poseResponse struct {
	Seq       int         `msgpack:"seq"`
	Landmarks [][]float64 `msgpack:"landmarks"`
	Error     string      `msgpack:"error,omitempty"`
}

// writeMessage frames v as a 4-byte big-endian length followed by its
// msgpack encoding.
func writeMessage(w io.Writer, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal msgpack: %w", err)
	}

	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func readMessage(r io.Reader, v any) error {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return fmt.Errorf("read length prefix: %w", err)
	}

	n := binary.BigEndian.Uint32(lengthBuf[:])
	if n > maxMessageSize {
		return fmt.Errorf("%w: message of %d bytes exceeds limit", errProtocol, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read message body: %w", err)
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: unmarshal msgpack: %v", errProtocol, err)
	}
	return nil
}

// toPoseSet converts a worker response into a PoseSet. A set is either
// complete or rejected.
func toPoseSet(resp poseResponse) (entity.PoseSet, error) {
	if resp.Landmarks == nil {
		return nil, nil
	}
	if len(resp.Landmarks) != entity.LandmarkCount {
		return nil, fmt.Errorf("%w: got %d landmarks, want %d", errProtocol, len(resp.Landmarks), entity.LandmarkCount)
	}

	pose := make(entity.PoseSet, entity.LandmarkCount)
	for i, lm := range resp.Landmarks {
		if len(lm) != 4 {
			return nil, fmt.Errorf("%w: landmark %d has %d values", errProtocol, i, len(lm))
		}
		pose[i] = entity.Landmark{X: lm[0], Y: lm[1], Z: lm[2], Visibility: lm[3]}
	}
	return pose, nil
}
