// Command ytbatch wires the batch acquisition backend together and runs
// it as a long-lived process. There is no CLI surface and no GUI here:
// the frontend is an out-of-scope collaborator that would otherwise
// drive Controller over some RPC transport. This entry point starts
// everything up, forwards the event stream to the log, and drives a
// clean shutdown on SIGINT/SIGTERM.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ytbatch/internal/appcontrol"
	"ytbatch/internal/apppaths"
	"ytbatch/internal/config"
	"ytbatch/internal/depinstall"
	"ytbatch/internal/eventbus"
	"ytbatch/internal/jobstore"
	"ytbatch/internal/orchestrator"
	"ytbatch/internal/urlprobe"
	"ytbatch/internal/ytlog"
)

func main() {
	paths, err := apppaths.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve application paths: %v\n", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create application directories: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(paths.UserData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := ytlog.Init(paths.UserData, cfg.Get().LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	ytlog.Log.Info().Str("userData", paths.UserData).Msg("ytbatch starting up")

	bus := eventbus.New()
	store := jobstore.New(nil)
	dep := depinstall.New(paths)

	ytDlpPath := dep.DiscoverYtDlp()
	ffmpegPath := dep.DiscoverFFmpeg()
	ytlog.Log.Info().
		Str("ytDlp", ytDlpPath).
		Str("ffmpeg", ffmpegPath).
		Msg("dependency discovery complete")

	var controller *appcontrol.Controller
	orch := orchestrator.New(orchestrator.Deps{
		Store:     store,
		Bus:       bus,
		Prober:    urlprobe.New(ytDlpPath),
		Config:    cfg,
		YtDlpPath: func() string { return ytDlpPath },
		FFmpegDir: func() string {
			// Read through the controller so an ffmpeg install made after
			// startup is picked up.
			p := controller.FFmpegPath()
			if p == "" {
				return ""
			}
			return filepath.Dir(p)
		},
		TempDir: paths.TempDownload,
	})

	controller = appcontrol.New(store, bus, orch, dep, cfg, ytDlpPath, ffmpegPath)

	go logEvents(bus)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ytlog.Log.Info().Msg("shutdown requested")
	if err := controller.Shutdown(true); err != nil {
		ytlog.Log.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
}

// logEvents forwards the event stream to the logger. A real frontend
// would consume bus.Events() directly instead; this keeps the backend
// observable when run standalone.
func logEvents(bus *eventbus.Bus) {
	for ev := range bus.Events() {
		switch e := ev.(type) {
		case eventbus.JobAdded:
			ytlog.Log.Info().Str("job_id", e.Job.ID).Str("title", e.Job.Title).Msg("job added")
		case eventbus.JobUpdated:
			ytlog.Log.Debug().Str("job_id", e.JobID).Str("field", e.Field).Interface("value", e.Value).Msg("job updated")
		case eventbus.JobDone:
			ytlog.Log.Info().Str("job_id", e.JobID).Str("status", string(e.Status)).Msg("job done")
		case eventbus.DependencyProgress:
			ytlog.Log.Debug().Str("dependency", e.Dependency).Str("progress", e.HumanText).Msg("dependency progress")
		case eventbus.DependencyDone:
			ytlog.Log.Info().Str("dependency", e.Dependency).Bool("success", e.Success).Str("detail", e.Detail).Msg("dependency install finished")
		case eventbus.URLProcessingDone:
			ytlog.Log.Debug().Msg("url processing done")
		case eventbus.NewVersionAvailable:
			ytlog.Log.Info().Str("version", e.Version).Str("url", e.URL).Msg("new version available")
		case eventbus.CriticalError:
			ytlog.Log.Error().Str("message", e.Message).Msg("critical error")
		}
	}
}
