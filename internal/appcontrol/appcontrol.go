// Package appcontrol implements the AppController gatekeeping,
// pending-task, retry, and shutdown responsibilities of §4.7.
package appcontrol

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	apperr "ytbatch/internal/apperrors"
	"ytbatch/internal/config"
	"ytbatch/internal/depinstall"
	"ytbatch/internal/eventbus"
	"ytbatch/internal/httpfetch"
	"ytbatch/internal/jobstore"
	"ytbatch/internal/orchestrator"
	"ytbatch/internal/ytlog"
)

// pendingDownloadTask captures a download request that is waiting on an
// in-flight ffmpeg install before it can start (§4.7).
type pendingDownloadTask struct {
	urls []string
	opts jobstore.JobOptions
}

// Controller is the single entry point the UI adapter drives: every
// mutating action (enqueue, retry, shutdown, which runs the stop
// protocol) goes through it so the gatekeeping rules in §4.7 are never
// bypassed. It has no separate stop action.
type Controller struct {
	store  *jobstore.Store
	bus    *eventbus.Bus
	orch   *orchestrator.Orchestrator
	dep    *depinstall.Installer
	cfg    *config.Config

	mu                  sync.Mutex
	ytDlpPath           string
	ffmpegPath          string
	pendingDownloadTask *pendingDownloadTask
}

// New creates a Controller. ytDlpPath/ffmpegPath are the paths
// discovered at startup (possibly empty if not yet installed).
func New(store *jobstore.Store, bus *eventbus.Bus, orch *orchestrator.Orchestrator, dep *depinstall.Installer, cfg *config.Config, ytDlpPath, ffmpegPath string) *Controller {
	return &Controller{
		store:      store,
		bus:        bus,
		orch:       orch,
		dep:        dep,
		cfg:        cfg,
		ytDlpPath:  ytDlpPath,
		ffmpegPath: ffmpegPath,
	}
}

// YtDlpPath returns the currently known yt-dlp path, or "" if missing.
func (c *Controller) YtDlpPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ytDlpPath
}

// FFmpegPath returns the currently known ffmpeg path, or "" if missing.
func (c *Controller) FFmpegPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ffmpegPath
}

// ffmpegDir returns the directory containing ffmpeg, or "" if it isn't
// known yet.
func (c *Controller) ffmpegDir() string {
	p := c.FFmpegPath()
	if p == "" {
		return ""
	}
	return filepath.Dir(p)
}

// requiresFFmpeg reports whether opts needs ffmpeg to run at all (§4.7).
func requiresFFmpeg(opts jobstore.JobOptions) bool {
	return opts.Kind == jobstore.KindAudio || opts.EmbedThumbnail || opts.EmbedMetadata
}

// StartDownloads is the gatekept entry point for submitting new URLs.
// It enforces executable presence and output writability before handing
// off to the Orchestrator (§4.7).
func (c *Controller) StartDownloads(urls []string, opts jobstore.JobOptions) error {
	if c.YtDlpPath() == "" {
		err := apperr.NewWithCode("appcontrol.StartDownloads", apperr.ErrDependencyMissing, apperr.CodePrecondition, "yt-dlp is not available")
		c.bus.Emit(eventbus.CriticalError{Message: err.Message})
		return err
	}

	if err := probeOutputWritable(opts.OutputDir); err != nil {
		wrapped := apperr.NewWithCode("appcontrol.StartDownloads", apperr.ErrFile, apperr.CodeFile, "cannot write to output directory: "+err.Error())
		return wrapped
	}

	if requiresFFmpeg(opts) && c.FFmpegPath() == "" {
		c.mu.Lock()
		c.pendingDownloadTask = &pendingDownloadTask{urls: urls, opts: opts}
		c.mu.Unlock()

		go c.installFFmpegThenResume(context.Background())
		return nil
	}

	c.orch.Enqueue(urls, opts)
	return nil
}

// installFFmpegThenResume drives an ffmpeg install and, on success,
// releases any pendingDownloadTask it unblocks.
func (c *Controller) installFFmpegThenResume(ctx context.Context) {
	sink := func(phase httpfetch.Phase, determinate bool, done, total int64, human string) {
		c.bus.Emit(eventbus.DependencyProgress{
			Dependency:  "ffmpeg",
			Determinate: determinate,
			BytesDone:   done,
			BytesTotal:  total,
			HumanText:   human,
		})
	}

	path, err := c.dep.InstallFFmpeg(ctx, sink)
	if err != nil {
		ytlog.Log.Error().Err(err).Msg("ffmpeg install failed")
		c.bus.Emit(eventbus.DependencyDone{Dependency: "ffmpeg", Success: false, Detail: err.Error()})

		c.mu.Lock()
		c.pendingDownloadTask = nil
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.ffmpegPath = path
	pending := c.pendingDownloadTask
	c.pendingDownloadTask = nil
	c.mu.Unlock()

	c.bus.Emit(eventbus.DependencyDone{Dependency: "ffmpeg", Success: true, Detail: path})

	if pending != nil {
		c.orch.Enqueue(pending.urls, pending.opts)
	}
}

// probeOutputWritable creates and deletes a zero-length file in dir to
// confirm write access before any job is created (§4.7).
func probeOutputWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".ytbatch-write-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// RetryJobs removes the given failed job ids (status Failed or Error)
// from the store and re-enqueues fresh jobs carrying the same JobOptions
// (§4.7, §8 round-trip property). Ids of jobs in any other status are
// left untouched.
func (c *Controller) RetryJobs(ids []string) {
	type candidate struct {
		url           string
		opts          jobstore.JobOptions
		title         string
		playlistIndex *int
	}

	var toEnqueue []candidate
	var toRemove []string
	for _, id := range ids {
		j := c.store.Get(id)
		if j == nil || (j.Status != jobstore.StatusFailed && j.Status != jobstore.StatusError) {
			continue
		}
		toEnqueue = append(toEnqueue, candidate{url: j.URL, opts: j.Options, title: j.Title, playlistIndex: j.PlaylistIndex})
		toRemove = append(toRemove, id)
	}

	c.store.Remove(toRemove...)

	for _, cand := range toEnqueue {
		c.orch.EnqueueRetry(cand.url, cand.opts, cand.title, cand.playlistIndex)
	}
}

// Shutdown persists settings, driving the stop protocol first if any job
// is non-terminal and the caller confirms (§4.7).
func (c *Controller) Shutdown(confirmed bool) error {
	if c.hasNonTerminalJobs() {
		if !confirmed {
			return apperr.NewWithCode("appcontrol.Shutdown", apperr.ErrPrecondition, apperr.CodePrecondition, "active downloads require confirmation")
		}
		c.orch.Stop()
	}
	return c.cfg.Save()
}

func (c *Controller) hasNonTerminalJobs() bool {
	for _, j := range c.store.Snapshot() {
		if !j.Status.IsTerminal() {
			return true
		}
	}
	return false
}
