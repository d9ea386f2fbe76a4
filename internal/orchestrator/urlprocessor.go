package orchestrator

import (
	"context"
	"errors"

	"ytbatch/internal/apperrors"
	"ytbatch/internal/eventbus"
	"ytbatch/internal/jobstore"
	"ytbatch/internal/urlprobe"
	"ytbatch/internal/ytlog"
)

// urlProcessorLoop pulls one URL at a time from urlQueue until it is
// drained, expanding each into zero or more jobs (§4.6.1).
func (o *Orchestrator) urlProcessorLoop(ctx context.Context, urlQueue <-chan string, opts jobstore.JobOptions) {
	for {
		select {
		case <-ctx.Done():
			return
		case url, ok := <-urlQueue:
			if !ok {
				return
			}
			o.processURL(ctx, url, opts)
		}
	}
}

func (o *Orchestrator) processURL(ctx context.Context, url string, opts jobstore.JobOptions) {
	count, err := o.deps.Prober.CountItems(ctx, url)
	if err != nil {
		var partial *urlprobe.PartialExpansionError
		if errors.As(err, &partial) {
			o.addPartialPlaylistJobs(url, opts, partial)
			return
		}
		o.addTerminalFailedJob(url, opts, shapeProbeError(err))
		return
	}

	switch {
	case count == 0:
		ytlog.Log.Warn().Str("url", url).Msg("url expanded to zero items")

	case count == 1:
		title, terr := o.deps.Prober.SingleTitle(ctx, url)
		if terr != nil {
			title = "Untitled"
		}
		job := jobstore.NewJob(url, opts, title, nil)
		o.addJob(job)

	default:
		for i := 1; i <= count; i++ {
			idx := i
			title := urlprobe.ItemTitle(i, count)
			job := jobstore.NewJob(url, opts, title, &idx)
			o.addJob(job)
		}
	}
}

// addJob registers a freshly created job with the store, emits
// JobAdded, bumps the total counter, and pushes it onto the job queue.
func (o *Orchestrator) addJob(job *jobstore.Job) {
	o.deps.Store.Add(job)
	o.deps.Bus.Emit(eventbus.JobAdded{Job: job.Clone()})
	o.total.Add(1)
	o.jobQueue <- job
}

// addPartialPlaylistJobs materializes jobs for the ids a flat-playlist
// probe had already emitted before exiting non-zero, then records the
// incomplete expansion itself as one extra synthetic Failed job, instead
// of discarding everything the probe found (§4.6.1 supplemented
// behavior; the original app's was_partial).
func (o *Orchestrator) addPartialPlaylistJobs(url string, opts jobstore.JobOptions, partial *urlprobe.PartialExpansionError) {
	for i := 1; i <= partial.Count; i++ {
		idx := i
		title := urlprobe.ItemTitle(i, partial.Count)
		job := jobstore.NewJob(url, opts, title, &idx)
		o.addJob(job)
	}
	o.addTerminalFailedJob(url, opts, "Playlist expansion incomplete: "+partial.Reason)
}

// addTerminalFailedJob creates a synthetic already-Failed job so a
// URLExtractionError is visible in the job list rather than silently
// dropped (§4.6.1).
func (o *Orchestrator) addTerminalFailedJob(url string, opts jobstore.JobOptions, reason string) {
	job := jobstore.NewJob(url, opts, reason, nil)
	job.SetFailed(reason)
	o.deps.Store.Add(job)
	o.deps.Bus.Emit(eventbus.JobAdded{Job: job.Clone()})
	o.total.Add(1)
	o.incCompleted()
	o.deps.Bus.Emit(eventbus.JobDone{JobID: job.ID, Status: job.Status})
}

func shapeProbeError(err error) string {
	if ae, ok := err.(*apperrors.AppError); ok && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}
