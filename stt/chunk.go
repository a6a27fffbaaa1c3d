package stt

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	chunkDuration = 30 * time.Second
	minChunkBytes = 10 * 1024
)

// probeDuration asks ffprobe for the audio duration.
func probeDuration(path string) (time.Duration, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", out.String(), err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// splitChunks cuts the file into sequential segments of chunkDuration using
// time offsets and codec copy, never byte slicing. Segments ffmpeg fails on
// or that come out below minChunkBytes are dropped. The caller owns the
// returned files.
func splitChunks(path string, total time.Duration) ([]string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	var chunks []string
	idx := 0
	for off := time.Duration(0); off < total; off += chunkDuration {
		out := fmt.Sprintf("%s_chunk%03d%s", base, idx, ext)
		idx++

		cmd := exec.Command("ffmpeg",
			"-y", "-v", "error",
			"-ss", formatSeconds(off),
			"-t", formatSeconds(chunkDuration),
			"-i", path,
			"-c", "copy",
			out)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			_ = os.Remove(out)
			continue
		}
		info, err := os.Stat(out)
		if err != nil || info.Size() < minChunkBytes {
			_ = os.Remove(out)
			continue
		}
		chunks = append(chunks, out)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("split %s: no usable segments produced", filepath.Base(path))
	}
	return chunks, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
