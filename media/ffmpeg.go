package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type Kind string

const (
	Audio Kind = "audio"
	Video Kind = "video"
)

// FFmpeg shells out to ffmpeg/ffprobe for probing and sub-clip extraction.
// Every file it creates lives under TempDir and belongs to the caller.
type FFmpeg struct {
	TempDir        string
	SampleRate     int
	MinClipSeconds float64
}

func New(tempDir string, sampleRate int, minClipSeconds float64) *FFmpeg {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &FFmpeg{TempDir: tempDir, SampleRate: sampleRate, MinClipSeconds: minClipSeconds}
}

func ffmpegCommand(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Env = []string{}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func ffprobeCommand(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	cmd.Env = []string{}
	out, err := cmd.Output()
	return string(out), err
}

// HasVideo reports whether path carries at least one video stream.
func (f *FFmpeg) HasVideo(ctx context.Context, path string) (bool, error) {
	out, err := ffprobeCommand(ctx, []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		path,
	})
	if err != nil {
		return false, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return strings.TrimSpace(out) == "video", nil
}

// Duration returns the container duration in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	out, err := ffprobeCommand(ctx, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	})
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", strings.TrimSpace(out), err)
	}
	return d, nil
}

// ClipArgs builds the ffmpeg arguments for cutting [start, end) out of in.
func (f *FFmpeg) ClipArgs(in, out string, start, end float64, kind Kind) []string {
	dur := end - start
	if dur < f.MinClipSeconds {
		dur = f.MinClipSeconds
	}
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(dur),
		"-i", in,
	}
	if kind == Video {
		return append(args, "-an", "-c:v", "libx264", "-preset", "veryfast", "-crf", "28", out)
	}
	return append(args, "-vn", "-ar", strconv.Itoa(f.SampleRate), "-ac", "1", "-c:a", "pcm_s16le", out)
}

// ExtractClip writes the [start, end) span of path to a new temp file and
// returns its path. A failed extraction leaves nothing behind.
func (f *FFmpeg) ExtractClip(ctx context.Context, path string, start, end float64, kind Kind) (string, error) {
	ext := ".wav"
	if kind == Video {
		ext = ".mp4"
	}
	out := filepath.Join(f.TempDir, fmt.Sprintf("clip_%s_%s%s", kind, uuid.New().String(), ext))
	if msg, err := ffmpegCommand(ctx, f.ClipArgs(path, out, start, end, kind)); err != nil {
		Remove(out)
		return "", fmt.Errorf("extract %s clip %.2f-%.2f: %w out: %s", kind, start, end, err, tail(msg))
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		Remove(out)
		return "", fmt.Errorf("extract %s clip %.2f-%.2f: empty output", kind, start, end)
	}
	return out, nil
}

// ExtractFrames samples frames at fps into a fresh temp directory. The caller
// removes the directory.
func (f *FFmpeg) ExtractFrames(ctx context.Context, path string, fps float64, maxWidth int) (string, []string, error) {
	dir, err := os.MkdirTemp(f.TempDir, "frames_")
	if err != nil {
		return "", nil, fmt.Errorf("frames dir: %w", err)
	}
	filter := fmt.Sprintf("fps=%s", strconv.FormatFloat(fps, 'f', -1, 64))
	if maxWidth > 0 {
		filter += fmt.Sprintf(",scale='min(%d,iw)':-2", maxWidth)
	}
	args := []string{"-y", "-i", path, "-vf", filter, "-q:v", "3", filepath.Join(dir, "frame_%05d.jpg")}
	if msg, err := ffmpegCommand(ctx, args); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("extract frames: %w out: %s", err, tail(msg))
	}
	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		os.RemoveAll(dir)
		return "", nil, err
	}
	sort.Strings(frames)
	return dir, frames, nil
}

// Remove deletes a temp file, ignoring files that are already gone.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func tail(s string) string {
	const max = 400
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[len(s)-max:]
	}
	return s
}
