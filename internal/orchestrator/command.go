package orchestrator

import (
	"fmt"
	"path/filepath"
	"strconv"

	"ytbatch/internal/jobstore"
)

// buildArgs assembles the acquisition tool's argv for one job, per
// §4.6.3's command-assembly rules.
func buildArgs(job *jobstore.Job, tempDir, ffmpegDir string) []string {
	opts := job.Options

	args := []string{
		"--newline",
		"--progress-template", "PROGRESS::%(progress._percent_str)s",
		"--no-mtime",
		"--paths", fmt.Sprintf("temp:%s", tempDir),
		"-o", filepath.Join(opts.OutputDir, opts.FilenameTemplate),
	}

	if ffmpegDir != "" {
		args = append(args, "--ffmpeg-location", ffmpegDir)
	}

	switch opts.Kind {
	case jobstore.KindVideo:
		args = append(args, "-f", videoFormatSelector(opts.VideoResolution))

	case jobstore.KindAudio:
		args = append(args, "-f", "bestaudio/best", "--extract-audio")
		if opts.AudioFormat != "best" {
			args = append(args, "--audio-format", opts.AudioFormat)
		}
		if opts.AudioFormat == "mp3" {
			args = append(args, "--audio-quality", "192K")
		}
	}

	if opts.EmbedThumbnail {
		args = append(args, "--embed-thumbnail")
	}
	if opts.EmbedMetadata {
		args = append(args, "--embed-metadata")
	}

	if job.PlaylistIndex != nil {
		idx := strconv.Itoa(*job.PlaylistIndex)
		args = append(args, "--playlist-items", idx)
	}

	args = append(args, job.URL)
	return args
}

// videoFormatSelector renders §4.6.3's format-selector string for a
// video job's resolution choice.
func videoFormatSelector(resolution string) string {
	if resolution == "Best" {
		return "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	}
	return fmt.Sprintf("bestvideo[height<=%s][ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best[height<=%s]", resolution, resolution)
}
