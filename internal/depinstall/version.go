package depinstall

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytbatch/internal/procrunner"
)

const versionProbeTimeout = 15 * time.Second

// ProbeVersion runs execPath with its version flag and returns the first
// non-empty output line, or one of the fixed fallback strings §4.4 names.
func ProbeVersion(ctx context.Context, execPath string) string {
	if execPath == "" {
		return "Not found"
	}
	if _, err := os.Stat(execPath); err != nil {
		if os.IsPermission(err) {
			return "Not found or no permission"
		}
		return "Not found"
	}

	flag := "--version"
	if strings.Contains(strings.ToLower(filepath.Base(execPath)), "ffmpeg") {
		flag = "-version"
	}

	res, err := procrunner.RunCaptured(ctx, versionProbeTimeout, execPath, flag)
	if err != nil {
		if res != nil && res.TimedOut {
			return "Version check timed out"
		}
		if os.IsPermission(err) {
			return "Not found or no permission"
		}
		return "Error checking version"
	}
	if res.TimedOut {
		return "Version check timed out"
	}
	if res.ExitCode != 0 {
		return "Cannot execute"
	}

	combined := res.Stdout
	if combined == "" {
		combined = res.Stderr
	}
	for _, line := range strings.Split(combined, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return "Error checking version"
}
