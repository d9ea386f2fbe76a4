// Package urlprobe drives the acquisition tool in "no extraction" modes
// to count a URL's items and fetch display titles, per §4.2.
package urlprobe

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperr "ytbatch/internal/apperrors"
	"ytbatch/internal/procrunner"
)

const (
	countTimeout = 60 * time.Second
	titleTimeout = 30 * time.Second
)

// errorLinePrefix matches yt-dlp's "ERROR: <reason>" diagnostic lines,
// case-insensitively, the way the original app's _parse_yt_dlp_error does.
var errorLinePrefix = regexp.MustCompile(`(?i)^error:\s*`)

const maxReasonLen = 200

// PartialExpansionError reports that the flat-playlist probe exited
// non-zero after already emitting Count ids, matching the original
// app's was_partial behavior: the caller should still materialize jobs
// for the ids already seen rather than discard them.
type PartialExpansionError struct {
	Count  int
	Reason string
}

func (e *PartialExpansionError) Error() string { return e.Reason }

// Prober drives a specific yt-dlp executable.
type Prober struct {
	ytDlpPath string
}

// New creates a Prober bound to the given yt-dlp executable path.
func New(ytDlpPath string) *Prober {
	return &Prober{ytDlpPath: ytDlpPath}
}

// CountItems returns the number of items a URL expands to: 1 for a
// single video, N for a playlist of N, via yt-dlp's flat-playlist,
// print-id mode. Timeout is 60s.
//
// If the probe exits non-zero after already printing some ids, the
// count of ids seen so far is returned alongside a *PartialExpansionError
// rather than being discarded, so the caller can still materialize jobs
// for them (the original app's was_partial behavior).
func (p *Prober) CountItems(ctx context.Context, url string) (int, error) {
	res, err := procrunner.RunCaptured(ctx, countTimeout, p.ytDlpPath,
		"--flat-playlist", "--print", "id", "--no-warnings", url)
	if err != nil {
		return 0, apperr.NewWithCode("urlprobe.CountItems", apperr.ErrURLExtraction, apperr.CodeURLExtraction, timeoutAwareReason(err, res))
	}

	count := countNonEmptyLines(res.Stdout)

	if res.ExitCode != 0 {
		if count > 0 {
			return count, &PartialExpansionError{Count: count, Reason: shapeError(res.Stderr)}
		}
		return 0, apperr.NewWithCode("urlprobe.CountItems", apperr.ErrURLExtraction, apperr.CodeURLExtraction, shapeError(res.Stderr))
	}
	return count, nil
}

func countNonEmptyLines(s string) int {
	count := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

// SingleTitle returns the stripped title of a single-item URL via
// yt-dlp's get-title mode. Timeout is 30s; returns "Title not found" on
// empty output.
func (p *Prober) SingleTitle(ctx context.Context, url string) (string, error) {
	res, err := procrunner.RunCaptured(ctx, titleTimeout, p.ytDlpPath, "--get-title", "--no-warnings", url)
	if err != nil {
		return "", apperr.NewWithCode("urlprobe.SingleTitle", apperr.ErrURLExtraction, apperr.CodeURLExtraction, timeoutAwareReason(err, res))
	}
	if res.ExitCode != 0 {
		return "", apperr.NewWithCode("urlprobe.SingleTitle", apperr.ErrURLExtraction, apperr.CodeURLExtraction, shapeError(res.Stderr))
	}

	for _, line := range strings.Split(res.Stdout, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t, nil
		}
	}
	return "Title not found", nil
}

func timeoutAwareReason(err error, res *procrunner.Result) string {
	if res != nil && res.TimedOut {
		return "URL probe timed out."
	}
	return err.Error()
}

// shapeError implements §4.2's error-shaping rule: the first stderr line
// beginning "error:" (case-insensitive), truncated to 200 chars; falling
// back to the last non-empty stderr line.
func shapeError(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return "yt-dlp returned an error with no output."
	}

	lines := strings.Split(stderr, "\n")
	for _, line := range lines {
		if errorLinePrefix.MatchString(line) {
			msg := errorLinePrefix.ReplaceAllString(line, "")
			msg = strings.TrimSpace(msg)
			if len(msg) > maxReasonLen {
				msg = msg[:maxReasonLen] + "..."
			}
			return msg
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return strings.TrimSpace(lines[i])
		}
	}
	return "yt-dlp returned an error with no output."
}

// itemTitle is a small helper kept for callers building provisional
// playlist-item titles ("Item i/count...") per §4.6.1.
func itemTitle(i, count int) string {
	return "Item " + strconv.Itoa(i) + "/" + strconv.Itoa(count) + "..."
}

// ItemTitle returns the provisional title for playlist item i of count.
func ItemTitle(i, count int) string { return itemTitle(i, count) }
