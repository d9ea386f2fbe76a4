package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytbatch/internal/eventbus"
	"ytbatch/internal/jobstore"
	"ytbatch/internal/ytlog"
)

// interruptGraceTimeout is how long a group-level interrupt is given to
// end a process before it is forcibly killed (§4.6.4 step 4).
const interruptGraceTimeout = 10 * time.Second

// partialFileSuffixes names the in-progress artifact extensions cleaned
// up from the temp directory after a stop (§4.6.4 step 5).
var partialFileSuffixes = []string{".part", ".ytdl", ".webm"}

// Stop runs the six-step stop protocol: signal, cancel, drain, kill
// active processes, clean up partial files, and reset counters.
func (o *Orchestrator) Stop() {
	// Step 1: set the global stop signal.
	o.stopping.Store(true)

	// Step 2: cancel all URL processors and workers.
	o.workersMu.Lock()
	o.rootCancel()
	o.workersMu.Unlock()

	// Step 3: drain the job queue, emitting done(Cancelled) for every job
	// found. URL processors stop on the cancelled context; the URLs still
	// in their queue are dropped without creating jobs.
	o.drainJobQueue()

	// Step 4: snapshot the ActiveProcessTable and terminate each entry.
	o.terminateActiveProcesses()

	// Step 5: delete partial download artifacts.
	o.cleanupPartialFiles()

	// Step 6: reset counters.
	o.completed.Store(0)
	o.total.Store(0)
}

func (o *Orchestrator) drainJobQueue() {
	for {
		select {
		case job, ok := <-o.jobQueue:
			if !ok {
				return
			}
			o.deps.Store.Update(job.ID, func(j *jobstore.Job) { j.Status = jobstore.StatusCancelled })
			o.deps.Bus.Emit(eventbus.JobDone{JobID: job.ID, Status: jobstore.StatusCancelled})
		default:
			return
		}
	}
}

func (o *Orchestrator) terminateActiveProcesses() {
	o.activeMu.Lock()
	snapshot := make(map[string]*activeProc, len(o.active))
	for id, p := range o.active {
		snapshot[id] = p
	}
	o.active = make(map[string]*activeProc)
	o.activeMu.Unlock()

	for jobID, entry := range snapshot {
		if entry.handle != nil {
			if err := entry.handle.Interrupt(); err != nil {
				ytlog.Log.Warn().Str("job_id", jobID).Err(err).Msg("interrupt failed")
			}
			if !entry.handle.WaitTimeout(interruptGraceTimeout) {
				if err := entry.handle.Kill(); err != nil {
					ytlog.Log.Warn().Str("job_id", jobID).Err(err).Msg("kill failed")
				}
			}
		}

		o.deps.Store.Update(jobID, func(j *jobstore.Job) { j.Status = jobstore.StatusCancelled })
		o.incCompleted()
		o.deps.Bus.Emit(eventbus.JobDone{JobID: jobID, Status: jobstore.StatusCancelled})
	}
}

func (o *Orchestrator) cleanupPartialFiles() {
	entries, err := os.ReadDir(o.deps.TempDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, suffix := range partialFileSuffixes {
			if strings.HasSuffix(e.Name(), suffix) {
				os.Remove(filepath.Join(o.deps.TempDir, e.Name()))
				break
			}
		}
	}
}
