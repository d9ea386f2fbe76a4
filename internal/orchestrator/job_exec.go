package orchestrator

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"ytbatch/internal/eventbus"
	"ytbatch/internal/jobstore"
	"ytbatch/internal/procrunner"
)

var percentInBracket = regexp.MustCompile(`(\d{1,3}\.\d)%`)

var stageMarkers = []struct {
	marker string
	status jobstore.Status
	text   string
}{
	{"[merger]", jobstore.StatusMerging, "Merging…"},
	{"[ExtractAudio]", jobstore.StatusExtractingAudio, "Extracting Audio…"},
	{"[EmbedThumbnail]", jobstore.StatusEmbedding, "Embedding…"},
	{"[FixupM4a]", jobstore.StatusFixingContainer, "Fixing M4a…"},
	{"[Metadata]", jobstore.StatusWritingMetadata, "Writing Metadata…"},
}

// runJob executes one job's acquisition process end to end: command
// assembly, registration in the ActiveProcessTable, stdout parsing, and
// terminal-status determination (§4.6.3).
func (o *Orchestrator) runJob(_ context.Context, job *jobstore.Job) {
	if o.stopping.Load() {
		o.finishCancelled(job)
		return
	}

	o.deps.Store.Update(job.ID, func(j *jobstore.Job) {
		j.Status = jobstore.StatusDownloading
	})
	o.deps.Bus.Emit(eventbus.JobUpdated{JobID: job.ID, Field: "status", Value: jobstore.StatusDownloading})

	ytDlpPath := o.deps.YtDlpPath()
	ffmpegDir := o.deps.FFmpegDir()
	args := buildArgs(job, o.deps.TempDir, ffmpegDir)

	// Start the process without holding activeMu, since a subprocess
	// launch is a suspension point and no lock may be held across one.
	// Registration then happens in a single critical section immediately
	// after, so there is no window where the table holds a placeholder
	// with no handle: a stop raised before registration is caught either
	// by runJob's entry check or by the stopping check under activeMu
	// below (which stops the just-started process itself); one raised
	// after registration is caught by terminateActiveProcesses.
	h, err := procrunner.Start(context.Background(), ytDlpPath, args, procrunner.Options{})
	if err != nil {
		o.finishError(job, err.Error())
		return
	}

	o.activeMu.Lock()
	if o.stopping.Load() {
		o.activeMu.Unlock()
		// Stop() may have already swapped in a fresh map and will never
		// see this handle, so it must be interrupted here instead.
		h.Interrupt()
		if !h.WaitTimeout(interruptGraceTimeout) {
			h.Kill()
		}
		h.Wait()
		o.finishCancelled(job)
		return
	}
	o.active[job.ID] = &activeProc{handle: h}
	o.activeMu.Unlock()

	errorReason := o.pumpLines(job, h)

	o.activeMu.Lock()
	_, stillActive := o.active[job.ID]
	delete(o.active, job.ID)
	o.activeMu.Unlock()

	if !stillActive {
		// The stop protocol already removed this entry and will emit the
		// Cancelled terminal status itself.
		return
	}

	waitErr := h.Wait()
	o.finishFromExit(job, h.ExitCode(), waitErr, errorReason)
}

// pumpLines reads stdout, updating the job's title/status/progress as it
// goes, and returns the last ERROR: reason seen, if any.
func (o *Orchestrator) pumpLines(job *jobstore.Job, h *procrunner.Handle) string {
	var errorReason string

	for line := range h.Lines() {
		if dest, ok := parseDestination(line); ok && dest != "" {
			o.deps.Store.Update(job.ID, func(j *jobstore.Job) { j.Title = dest })
			o.updateField(job.ID, "title", dest)
		}

		if reason, ok := parseErrorLine(line); ok {
			errorReason = reason
		}

		if marker, ok := matchStageMarker(line); ok {
			o.deps.Store.Update(job.ID, func(j *jobstore.Job) { j.Status = marker.status })
			o.updateField(job.ID, "status", marker.status)
		}

		if pct, ok := parseProgress(line); ok {
			o.updateField(job.ID, "progress", pct)
			o.deps.Store.Update(job.ID, func(j *jobstore.Job) { j.Progress = pct })
		}
	}

	return errorReason
}

func (o *Orchestrator) updateField(jobID, field string, value any) {
	o.deps.Bus.Emit(eventbus.JobUpdated{JobID: jobID, Field: field, Value: value})
}

// finishFromExit applies §4.6.3's termination-semantics table.
func (o *Orchestrator) finishFromExit(job *jobstore.Job, exitCode int, waitErr error, errorReason string) {
	switch {
	case exitCode == 0 && waitErr == nil:
		o.deps.Store.Update(job.ID, func(j *jobstore.Job) { j.SetCompleted() })
	case errorReason != "":
		o.deps.Store.Update(job.ID, func(j *jobstore.Job) { j.SetFailed(errorReason) })
	default:
		o.deps.Store.Update(job.ID, func(j *jobstore.Job) { j.SetFailed("") })
	}

	j := o.deps.Store.Get(job.ID)
	o.incCompleted()
	o.deps.Bus.Emit(eventbus.JobDone{JobID: job.ID, Status: j.Status})
}

func (o *Orchestrator) finishError(job *jobstore.Job, reason string) {
	o.deps.Store.Update(job.ID, func(j *jobstore.Job) { j.SetError(reason) })
	o.incCompleted()
	o.deps.Bus.Emit(eventbus.JobDone{JobID: job.ID, Status: jobstore.StatusError})
}

func (o *Orchestrator) finishCancelled(job *jobstore.Job) {
	o.deps.Store.Update(job.ID, func(j *jobstore.Job) { j.Status = jobstore.StatusCancelled })
	o.incCompleted()
	o.deps.Bus.Emit(eventbus.JobDone{JobID: job.ID, Status: jobstore.StatusCancelled})
}

// parseDestination extracts the filename stem from a
// "[download] Destination: <path>" line.
func parseDestination(line string) (string, bool) {
	const prefix = "[download] Destination: "
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	path := strings.TrimPrefix(line, prefix)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return stem, true
}

func parseErrorLine(line string) (string, bool) {
	const prefix = "ERROR:"
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
}

// matchStageMarker compares against a lowercased line, the way the
// original app lowercases its captured status key before comparing it
// against an all-lowercase table, so the match doesn't depend on
// yt-dlp's actual bracket casing ("[Merger]", "[ExtractAudio]", ...).
func matchStageMarker(line string) (struct {
	marker string
	status jobstore.Status
	text   string
}, bool) {
	lower := strings.ToLower(line)
	for _, m := range stageMarkers {
		if strings.HasPrefix(lower, strings.ToLower(m.marker)) {
			return m, true
		}
	}
	return stageMarkers[0], false
}

// parseProgress prefers a PROGRESS::NN.N% marker line, falling back to
// any percentage found inside a [download] line.
func parseProgress(line string) (string, bool) {
	const progressPrefix = "PROGRESS::"
	if strings.HasPrefix(line, progressPrefix) {
		pct := strings.TrimSpace(strings.TrimPrefix(line, progressPrefix))
		return pct, true
	}
	if strings.HasPrefix(line, "[download]") {
		if m := percentInBracket.FindStringSubmatch(line); m != nil {
			return m[1] + "%", true
		}
	}
	return "", false
}
