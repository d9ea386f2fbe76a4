package appcontrol

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"ytbatch/internal/apperrors"
	"ytbatch/internal/apppaths"
	"ytbatch/internal/config"
	"ytbatch/internal/depinstall"
	"ytbatch/internal/eventbus"
	"ytbatch/internal/jobstore"
	"ytbatch/internal/orchestrator"
	"ytbatch/internal/urlprobe"
)

// writeFakeYtDlp writes a script that answers the probe flags
// urlprobe.Prober sends and exits cleanly for anything else, so
// re-enqueued jobs actually complete instead of hanging.
func writeFakeYtDlp(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp script test requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available in test environment")
	}

	script := "#!/bin/sh\n" +
		"case \"$*\" in\n" +
		"  *--flat-playlist*) echo \"id1\" ;;\n" +
		"  *--get-title*) echo \"Clip\" ;;\n" +
		"  *) echo \"PROGRESS:: 100.0%\"; exit 0 ;;\n" +
		"esac\n"

	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func newTestController(t *testing.T, ytDlpPath, ffmpegPath string) (*Controller, *jobstore.Store, *eventbus.Bus) {
	t.Helper()
	store := jobstore.New(nil)
	bus := eventbus.New()

	configDir := t.TempDir()
	cfg, err := config.Load(configDir)
	if err != nil {
		t.Fatalf("config.Load() error: %v", err)
	}
	cfg.MaxConcurrentDownloads = 2

	orch := orchestrator.New(orchestrator.Deps{
		Store:     store,
		Bus:       bus,
		Prober:    urlprobe.New(ytDlpPath),
		Config:    cfg,
		YtDlpPath: func() string { return ytDlpPath },
		FFmpegDir: func() string { return "" },
		TempDir:   t.TempDir(),
	})
	t.Cleanup(orch.Stop)

	dep := depinstall.New(&apppaths.Paths{
		UserData:     t.TempDir(),
		TempDownload: t.TempDir(),
		ExeDir:       t.TempDir(),
	})
	c := New(store, bus, orch, dep, cfg, ytDlpPath, ffmpegPath)
	return c, store, bus
}

func TestStartDownloads_MissingYtDlpRejects(t *testing.T) {
	c, _, bus := newTestController(t, "", "")

	err := c.StartDownloads([]string{"https://example/v/1"}, jobstore.JobOptions{OutputDir: t.TempDir()})
	if err == nil {
		t.Fatal("StartDownloads() error = nil, want an error when yt-dlp is missing")
	}
	if !apperrors.IsDependencyMissing(err) {
		t.Errorf("StartDownloads() error = %v, want a dependency-missing error", err)
	}

	select {
	case ev := <-bus.Events():
		if _, ok := ev.(eventbus.CriticalError); !ok {
			t.Errorf("expected a CriticalError event, got %#v", ev)
		}
	default:
		t.Error("expected a CriticalError event to be emitted")
	}
}

func TestStartDownloads_UnwritableOutputRejects(t *testing.T) {
	c, _, _ := newTestController(t, "/bin/true", "")

	badDir := filepath.Join(t.TempDir(), "does-not-exist")
	err := c.StartDownloads([]string{"https://example/v/1"}, jobstore.JobOptions{OutputDir: badDir})
	if err == nil {
		t.Fatal("StartDownloads() error = nil, want a write-probe failure")
	}
}

func TestStartDownloads_CapturesPendingTaskWhenFFmpegMissing(t *testing.T) {
	c, store, _ := newTestController(t, "/bin/true", "")

	opts := jobstore.JobOptions{OutputDir: t.TempDir(), Kind: jobstore.KindAudio, AudioFormat: "mp3"}
	if err := c.StartDownloads([]string{"https://example/v/1"}, opts); err != nil {
		t.Fatalf("StartDownloads() error: %v", err)
	}

	c.mu.Lock()
	pending := c.pendingDownloadTask
	c.mu.Unlock()

	if pending == nil {
		t.Fatal("expected a pendingDownloadTask to be captured")
	}
	if len(store.Snapshot()) != 0 {
		t.Error("no jobs should appear before ffmpeg is usable")
	}
}

func TestRetryJobs_RemovesAndReenqueues(t *testing.T) {
	ytDlp := writeFakeYtDlp(t)
	c, store, bus := newTestController(t, ytDlp, "/bin/true")

	opts := jobstore.JobOptions{OutputDir: t.TempDir(), Kind: jobstore.KindVideo, VideoResolution: "1080"}
	job := jobstore.NewJob("https://example/v/1", opts, "Clip", nil)
	job.SetFailed("HTTP 403")
	store.Add(job)

	c.RetryJobs([]string{job.ID})

	if store.Get(job.ID) != nil {
		t.Error("old failed job should have been removed")
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-bus.Events():
		case <-deadline:
			t.Fatal("timed out waiting for the retried job to appear")
		}
		if len(store.Snapshot()) == 1 {
			break
		}
	}

	snap := store.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected exactly one re-enqueued job, got %d", len(snap))
	}
	if snap[0].ID == job.ID {
		t.Error("retried job should have a fresh id")
	}
	if snap[0].Options != opts {
		t.Errorf("retried job options = %#v, want %#v", snap[0].Options, opts)
	}
}

func TestShutdown_RequiresConfirmationWithActiveJobs(t *testing.T) {
	c, store, _ := newTestController(t, "/bin/true", "/bin/true")

	opts := jobstore.JobOptions{OutputDir: t.TempDir(), Kind: jobstore.KindVideo, VideoResolution: "1080"}
	job := jobstore.NewJob("https://example/v/1", opts, "Clip", nil)
	store.Add(job) // Queued, non-terminal

	if err := c.Shutdown(false); err == nil {
		t.Fatal("Shutdown(false) error = nil, want confirmation required")
	}
}

func TestShutdown_NoActiveJobsSavesDirectly(t *testing.T) {
	c, _, _ := newTestController(t, "/bin/true", "/bin/true")

	if err := c.Shutdown(false); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
}

