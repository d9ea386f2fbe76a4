package depinstall

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"ytbatch/internal/apppaths"
)

func testPaths(t *testing.T) *apppaths.Paths {
	t.Helper()
	dir := t.TempDir()
	return &apppaths.Paths{
		UserData:     dir,
		TempDownload: filepath.Join(dir, "temp_downloads"),
		ExeDir:       dir,
	}
}

func TestDiscover_PrefersLocalOverPath(t *testing.T) {
	paths := testPaths(t)
	local := paths.YtDlpPath()
	if err := os.WriteFile(local, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	inst := New(paths)
	got := inst.DiscoverYtDlp()
	if got != local {
		t.Errorf("DiscoverYtDlp() = %q, want %q", got, local)
	}
}

func TestDiscover_FallsBackToNotFound(t *testing.T) {
	paths := testPaths(t)
	inst := New(paths)
	got := inst.discover("definitely-not-a-real-binary-xyz", paths.YtDlpPath())
	if got != "" {
		t.Errorf("discover() = %q, want empty", got)
	}
}

func TestProbeVersion_MissingExecutable(t *testing.T) {
	got := ProbeVersion(context.Background(), "")
	if got != "Not found" {
		t.Errorf("ProbeVersion(\"\") = %q, want %q", got, "Not found")
	}

	got = ProbeVersion(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if got != "Not found" {
		t.Errorf("ProbeVersion(missing) = %q, want %q", got, "Not found")
	}
}

func TestAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dest := filepath.Join(dir, "dest")

	if err := os.WriteFile(src, []byte("new"), 0644); err != nil {
		t.Fatalf("WriteFile(src) error: %v", err)
	}
	if err := os.WriteFile(dest, []byte("old"), 0644); err != nil {
		t.Fatalf("WriteFile(dest) error: %v", err)
	}

	if err := atomicReplace(src, dest); err != nil {
		t.Fatalf("atomicReplace() error: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("dest content = %q, want %q", got, "new")
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("src should no longer exist after atomicReplace")
	}
}

func TestExtractZip_LocatesExecutable(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "bundle.zip")

	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("ffmpeg-bundle/bin/ffmpeg")
	if err != nil {
		t.Fatalf("zw.Create() error: %v", err)
	}
	w.Write([]byte("fake binary"))
	if err := zw.Close(); err != nil {
		t.Fatalf("zw.Close() error: %v", err)
	}
	f.Close()

	destDir := filepath.Join(dir, "extracted")
	if err := extractZip(archivePath, destDir); err != nil {
		t.Fatalf("extractZip() error: %v", err)
	}

	found, err := locateExecutable(destDir, "ffmpeg")
	if err != nil {
		t.Fatalf("locateExecutable() error: %v", err)
	}
	if filepath.Base(found) != "ffmpeg" {
		t.Errorf("located %q, want base name ffmpeg", found)
	}
}

func TestBasenameFromURL(t *testing.T) {
	got := basenameFromURL("https://example.com/releases/latest/download/yt-dlp_macos")
	if got != "yt-dlp_macos" {
		t.Errorf("basenameFromURL() = %q, want %q", got, "yt-dlp_macos")
	}
}

func TestInstallYtDlp_UnsupportedOS(t *testing.T) {
	if _, ok := ytDlpURLs[runtime.GOOS]; !ok {
		t.Skip("current OS is unsupported by design; nothing to assert beyond the map lookup")
	}
}
