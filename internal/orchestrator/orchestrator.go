// Package orchestrator schedules URL expansion and per-job acquisition
// across a bounded worker pool, per §4.6.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"ytbatch/internal/config"
	"ytbatch/internal/eventbus"
	"ytbatch/internal/jobstore"
	"ytbatch/internal/procrunner"
	"ytbatch/internal/urlprobe"
	"ytbatch/internal/ytlog"
)

// maxURLProcessors bounds how many URL processors run concurrently for
// one Enqueue call, independent of the download worker concurrency.
const maxURLProcessors = 8

// Deps bundles the collaborators the Orchestrator drives. Paths to the
// external executables are resolved lazily via functions so an install
// completing mid-run is picked up without re-wiring the Orchestrator.
type Deps struct {
	Store     *jobstore.Store
	Bus       *eventbus.Bus
	Prober    *urlprobe.Prober
	Config    *config.Config
	YtDlpPath func() string
	FFmpegDir func() string // containing directory, or "" if unknown
	TempDir   string
}

// activeProc is one entry in the ActiveProcessTable: the running handle
// for a job, so the stop protocol can reach it.
type activeProc struct {
	handle *procrunner.Handle
}

// Orchestrator owns the URL-processing queue, the job queue, the worker
// pool, and the table of in-flight processes.
type Orchestrator struct {
	deps Deps

	completed atomic.Int64
	total     atomic.Int64

	jobQueue chan *jobstore.Job

	workersMu      sync.Mutex
	workersRunning int
	rootCtx        context.Context
	rootCancel     context.CancelFunc

	urlProcessingDone atomic.Bool

	activeMu sync.Mutex
	active   map[string]*activeProc

	stopping atomic.Bool
}

// New creates an Orchestrator. The job queue is sized generously since
// URL expansion (a playlist) can burst many jobs at once.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		deps:     deps,
		jobQueue: make(chan *jobstore.Job, 4096),
		active:   make(map[string]*activeProc),
	}
	o.rootCtx, o.rootCancel = context.WithCancel(context.Background())
	return o
}

// Completed returns the current completed-job counter.
func (o *Orchestrator) Completed() int64 { return o.completed.Load() }

// Total returns the current total-job counter, which can grow while URL
// processors are still expanding playlists.
func (o *Orchestrator) Total() int64 { return o.total.Load() }

// Enqueue expands urls into jobs and schedules them, per §4.6.
func (o *Orchestrator) Enqueue(urls []string, opts jobstore.JobOptions) {
	o.completed.Store(0)
	o.total.Store(0)
	o.urlProcessingDone.Store(false)
	o.stopping.Store(false)

	o.workersMu.Lock()
	if o.rootCtx.Err() != nil {
		o.rootCtx, o.rootCancel = context.WithCancel(context.Background())
	}
	ctx := o.rootCtx
	o.workersMu.Unlock()

	o.startWorkers(ctx, o.deps.Config.Get().MaxConcurrentDownloads)

	urlQueue := make(chan string, len(urls))
	for _, u := range urls {
		urlQueue <- u
	}
	close(urlQueue)

	numProcessors := maxURLProcessors
	if len(urls) < numProcessors {
		numProcessors = len(urls)
	}

	var wg sync.WaitGroup
	for i := 0; i < numProcessors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.urlProcessorLoop(ctx, urlQueue, opts)
		}()
	}

	go func() {
		wg.Wait()
		o.urlProcessingDone.Store(true)
		o.deps.Bus.Emit(eventbus.URLProcessingDone{})
	}()
}

// EnqueueRetry schedules a single previously-known job for re-execution,
// carrying forward its URL, options, title, and playlist index exactly
// as captured rather than re-probing the URL. Unlike Enqueue, it does
// not reset the aggregate (completed, total) counters or URL-processing
// state: a retry only adds one job to whatever batch may already be
// running, the same way the original app's add_jobs only increments
// total_jobs and never resets stats, so a retry issued while sibling
// jobs are still downloading can't wipe their progress back to zero.
func (o *Orchestrator) EnqueueRetry(url string, opts jobstore.JobOptions, title string, playlistIndex *int) {
	o.stopping.Store(false)

	o.workersMu.Lock()
	if o.rootCtx.Err() != nil {
		o.rootCtx, o.rootCancel = context.WithCancel(context.Background())
	}
	ctx := o.rootCtx
	o.workersMu.Unlock()

	o.startWorkers(ctx, o.deps.Config.Get().MaxConcurrentDownloads)

	job := jobstore.NewJob(url, opts, title, playlistIndex)
	o.addJob(job)
}

// startWorkers brings the running worker count up to target. It is
// idempotent: already-running workers are left alone.
func (o *Orchestrator) startWorkers(ctx context.Context, target int) {
	if target < 1 {
		target = 1
	}
	if target > 20 {
		target = 20
	}

	o.workersMu.Lock()
	defer o.workersMu.Unlock()

	for o.workersRunning < target {
		o.workersRunning++
		go o.workerLoop(ctx)
	}
}

func (o *Orchestrator) workerLoop(ctx context.Context) {
	defer func() {
		o.workersMu.Lock()
		o.workersRunning--
		o.workersMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.jobQueue:
			if !ok {
				return
			}
			o.runJob(ctx, job)

			if len(o.jobQueue) == 0 && o.urlProcessingDone.Load() {
				return
			}
		}
	}
}

func (o *Orchestrator) incCompleted() {
	n := o.completed.Add(1)
	t := o.total.Load()
	if n > t {
		ytlog.Log.Warn().Int64("completed", n).Int64("total", t).Msg("completed exceeded total, clamping")
		o.completed.Store(t)
	}
}
