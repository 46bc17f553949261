// Package ffmpeg wraps ffprobe, which supplies the duration of a selected
// video so the time range can be checked locally.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoDuration is returned when ffprobe reports no usable duration.
var ErrNoDuration = errors.New("no duration in probe output")

// ProbeResult contains metadata about a video file
type ProbeResult struct {
	Path       string        `json:"path"`
	Size       int64         `json:"size"`
	Duration   time.Duration `json:"duration"`
	Format     string        `json:"format"`
	VideoCodec string        `json:"video_codec"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	FrameRate  float64       `json:"frame_rate"`
}

// ffprobeOutput represents the JSON output from ffprobe
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// Prober wraps ffprobe functionality
type Prober struct {
	ffprobePath string
}

// NewProber creates a new Prober with the given ffprobe path
func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath}
}

// Available reports whether the ffprobe binary can be found.
func (p *Prober) Available() bool {
	_, err := exec.LookPath(p.ffprobePath)
	return err == nil
}

// Probe returns metadata about a video file
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(path, output)
}

// Duration probes path and returns its duration.
func (p *Prober) Duration(ctx context.Context, path string) (time.Duration, error) {
	result, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if result.Duration <= 0 {
		return 0, fmt.Errorf("%s: %w", path, ErrNoDuration)
	}
	return result.Duration, nil
}

func parseProbeOutput(path string, output []byte) (*ProbeResult, error) {
	var probeOutput ffprobeOutput
	if err := json.Unmarshal(output, &probeOutput); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	result := &ProbeResult{
		Path:   path,
		Format: probeOutput.Format.FormatName,
	}
	if probeOutput.Format.Size != "" {
		result.Size, _ = strconv.ParseInt(probeOutput.Format.Size, 10, 64)
	}
	result.Duration = parseSeconds(probeOutput.Format.Duration)

	for i := range probeOutput.Streams {
		stream := &probeOutput.Streams[i]
		if stream.CodecType != "video" || result.VideoCodec != "" {
			continue
		}
		// Take first video stream
		result.VideoCodec = stream.CodecName
		result.Width = stream.Width
		result.Height = stream.Height
		result.FrameRate = parseFrameRate(stream.RFrameRate)
		if result.FrameRate == 0 {
			result.FrameRate = parseFrameRate(stream.AvgFrameRate)
		}
		// Some containers only carry the duration on the stream
		if result.Duration == 0 {
			result.Duration = parseSeconds(stream.Duration)
		}
	}

	return result, nil
}

func parseSeconds(s string) time.Duration {
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil || sec < 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

// parseFrameRate parses a frame rate string like "30000/1001" or "30/1"
func parseFrameRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	num, _ := strconv.ParseFloat(parts[0], 64)
	den, _ := strconv.ParseFloat(parts[1], 64)
	if den == 0 {
		return 0
	}
	return num / den
}
