package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/fiapx/fiapx-pose-service/internal/domain/entity"
)

var errNoVideoTrack = errors.New("no video track found")

// probeMP4 reads the declared metadata of a progressive MP4 straight from
// its moov box. The declared frame count is the sample count of the first
// video track.
func probeMP4(path string) (entity.VideoMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return entity.VideoMetadata{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	parsed, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return entity.VideoMetadata{}, fmt.Errorf("decode mp4: %w", err)
	}
	if parsed.IsFragmented() || parsed.Moov == nil {
		return entity.VideoMetadata{}, fmt.Errorf("mp4 is fragmented or has no moov box")
	}

	for _, trak := range parsed.Moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsz == nil {
			return entity.VideoMetadata{}, fmt.Errorf("video track has no sample table")
		}
		stbl := trak.Mdia.Minf.Stbl

		meta := entity.VideoMetadata{DeclaredFrameCount: int(stbl.Stsz.SampleNumber)}
		if stbl.Stsd != nil {
			for _, child := range stbl.Stsd.Children {
				if vse, ok := child.(*mp4.VisualSampleEntryBox); ok {
					meta.Width = int(vse.Width)
					meta.Height = int(vse.Height)
					break
				}
			}
		}
		if mdhd := trak.Mdia.Mdhd; mdhd != nil && mdhd.Duration > 0 {
			meta.FrameRate = float64(meta.DeclaredFrameCount) * float64(mdhd.Timescale) / float64(mdhd.Duration)
		}
		if meta.Width == 0 || meta.Height == 0 {
			return entity.VideoMetadata{}, fmt.Errorf("video track has no visual sample entry")
		}
		return meta, nil
	}

	return entity.VideoMetadata{}, errNoVideoTrack
}

type ffprobeOutput struct {
	Streams []struct {
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		RFrameRate    string `json:"r_frame_rate"`
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
	} `json:"streams"`
}

func (e *Opener) probeFFprobe(ctx context.Context, path string) (entity.VideoMetadata, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,avg_frame_rate,r_frame_rate,nb_frames,nb_read_packets",
		"-of", "json",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return entity.VideoMetadata{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (entity.VideoMetadata, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return entity.VideoMetadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return entity.VideoMetadata{}, errNoVideoTrack
	}
	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return entity.VideoMetadata{}, fmt.Errorf("video stream has no dimensions")
	}

	rate := parseFrameRate(s.AvgFrameRate)
	if rate == 0 {
		rate = parseFrameRate(s.RFrameRate)
	}

	count, err := strconv.Atoi(s.NbFrames)
	if err != nil {
		count, _ = strconv.Atoi(s.NbReadPackets)
	}

	return entity.VideoMetadata{
		FrameRate:          rate,
		Width:              s.Width,
		Height:             s.Height,
		DeclaredFrameCount: count,
	}, nil
}

// parseFrameRate parses ffprobe rationals such as "30000/1001". Unknown or
// malformed rates ("0/0", "") return 0.
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
