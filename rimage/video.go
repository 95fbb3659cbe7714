package rimage

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

type streamInfo struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// FFmpegAvailable reports whether the ffmpeg and ffprobe binaries are on the PATH.
func FFmpegAvailable() bool {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			return false
		}
	}
	return true
}

// VideoSize returns the width and height of the first video stream in path.
func VideoSize(path string) (int, int, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "reading video info of %q", path)
	}
	var info streamInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return 0, 0, errors.Wrapf(err, "parsing stream info of %q", path)
	}
	for _, stream := range info.Streams {
		if stream.CodecType == "video" && stream.Width > 0 && stream.Height > 0 {
			return stream.Width, stream.Height, nil
		}
	}
	return 0, 0, errors.Errorf("no video stream in %q", path)
}

// ReadVideoFrames decodes every frame of the video at path through ffmpeg as raw rgb24.
func ReadVideoFrames(ctx context.Context, path string) (Frames, error) {
	width, height, err := VideoSize(path)
	if err != nil {
		return nil, err
	}

	var out, stderr bytes.Buffer
	stream := ffmpeg.Input(path).
		Output("pipe:", ffmpeg.KwArgs{"format": "rawvideo", "pix_fmt": "rgb24"})
	stream.Context = ctx
	if err := stream.WithOutput(&out).WithErrorOutput(&stderr).Run(); err != nil {
		return nil, errors.Wrapf(err, "decoding video %q: %s", path, stderr.String())
	}

	return FramesFromRGB24(out.Bytes(), width, height)
}

// FramesFromRGB24 splits packed rgb24 video into one 3 channel frame per picture.
func FramesFromRGB24(raw []byte, width, height int) (Frames, error) {
	frameSize := width * height * 3
	if frameSize == 0 || len(raw)%frameSize != 0 {
		return nil, errors.Errorf("%d bytes of video is not a whole number of %dx%d frames", len(raw), width, height)
	}
	frames := make(Frames, 0, len(raw)/frameSize)
	for start := 0; start < len(raw); start += frameSize {
		frame := NewArray(1, width, height, 3)
		pix := raw[start : start+frameSize]
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := (y*width + x) * 3
				frame.Set(0, x, y, 0, float64(pix[i]))
				frame.Set(0, x, y, 1, float64(pix[i+1]))
				frame.Set(0, x, y, 2, float64(pix[i+2]))
			}
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
