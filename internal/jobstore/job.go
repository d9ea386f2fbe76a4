// Package jobstore defines the Job data model (§3) and the in-memory,
// single-writer store that holds it (§4.5).
package jobstore

import "github.com/google/uuid"

// Kind names the acquisition mode a job was created with.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Status is one of the job lifecycle states named in §3. Failed and
// Error carry a free-text reason in Job.Reason rather than encoding it
// into the status string, so status comparisons stay simple constants.
type Status string

const (
	StatusQueued          Status = "Queued"
	StatusDownloading     Status = "Downloading"
	StatusMerging         Status = "Merging"
	StatusExtractingAudio Status = "ExtractingAudio"
	StatusEmbedding       Status = "Embedding"
	StatusFixingContainer Status = "FixingContainer"
	StatusWritingMetadata Status = "WritingMetadata"
	StatusCompleted       Status = "Completed"
	StatusFailed          Status = "Failed"
	StatusCancelled       Status = "Cancelled"
	StatusError           Status = "Error"
)

// IsTerminal reports whether s is one of the statuses a job never
// leaves: Completed, Failed, Cancelled, Error.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusError:
		return true
	default:
		return false
	}
}

// maxReasonLen bounds Job.Reason for Failed jobs (§3: "Failed(reason≤60 chars)").
const maxReasonLen = 60

// JobOptions is the immutable snapshot of acquisition settings captured
// at enqueue time. It must never be mutated after a Job is created.
type JobOptions struct {
	OutputDir        string
	FilenameTemplate string
	Kind             Kind
	VideoResolution  string // "Best"|"1080"|"720"|"480"
	AudioFormat      string // "best"|"mp3"|"m4a"|"flac"|"wav"
	EmbedThumbnail   bool
	EmbedMetadata    bool
}

// Job is one acquisition unit: a single video, or one item of a
// playlist. PlaylistIndex is nil for non-playlist jobs.
type Job struct {
	ID            string
	URL           string
	PlaylistIndex *int
	Options       JobOptions

	Title    string
	Status   Status
	Reason   string // set only for Failed/Error
	Progress string // "NN.N%", "0.0%" initially
}

// NewJob creates a queued job with a freshly generated id.
func NewJob(url string, opts JobOptions, title string, playlistIndex *int) *Job {
	return &Job{
		ID:            uuid.NewString(),
		URL:           url,
		PlaylistIndex: playlistIndex,
		Options:       opts,
		Title:         title,
		Status:        StatusQueued,
		Progress:      "0.0%",
	}
}

// Clone returns a defensive copy of the job, safe for a reader to hold
// after the store's lock has been released.
func (j *Job) Clone() *Job {
	clone := *j
	if j.PlaylistIndex != nil {
		idx := *j.PlaylistIndex
		clone.PlaylistIndex = &idx
	}
	return &clone
}

// SetFailed transitions the job to Failed with a reason truncated to
// maxReasonLen, matching §3's invariant.
func (j *Job) SetFailed(reason string) {
	if len(reason) > maxReasonLen {
		reason = reason[:maxReasonLen]
	}
	j.Status = StatusFailed
	j.Reason = reason
}

// SetError transitions the job to Error with a reason.
func (j *Job) SetError(reason string) {
	j.Status = StatusError
	j.Reason = reason
}

// SetCompleted transitions the job to Completed and forces progress to
// "100.0%" per §3's invariant.
func (j *Job) SetCompleted() {
	j.Status = StatusCompleted
	j.Progress = "100.0%"
}
