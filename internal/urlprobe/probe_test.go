package urlprobe

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

func TestShapeError_PrefersErrorLine(t *testing.T) {
	stderr := "WARNING: something noisy\nERROR: Video unavailable\nmore noise"
	got := shapeError(stderr)
	if got != "Video unavailable" {
		t.Errorf("shapeError() = %q, want %q", got, "Video unavailable")
	}
}

func TestShapeError_CaseInsensitive(t *testing.T) {
	got := shapeError("error: lowercase prefix")
	if got != "lowercase prefix" {
		t.Errorf("shapeError() = %q, want %q", got, "lowercase prefix")
	}
}

func TestShapeError_TruncatesLongMessages(t *testing.T) {
	long := ""
	for i := 0; i < 250; i++ {
		long += "x"
	}
	got := shapeError("ERROR: " + long)
	if len(got) != 203 { // 200 chars + "..."
		t.Errorf("shapeError() length = %d, want 203", len(got))
	}
}

func TestShapeError_FallsBackToLastNonEmptyLine(t *testing.T) {
	got := shapeError("some output\nthe real problem\n\n")
	if got != "the real problem" {
		t.Errorf("shapeError() = %q, want %q", got, "the real problem")
	}
}

func TestShapeError_EmptyStderr(t *testing.T) {
	got := shapeError("")
	if got != "yt-dlp returned an error with no output." {
		t.Errorf("shapeError() = %q, want fallback message", got)
	}
}

func TestItemTitle(t *testing.T) {
	got := ItemTitle(2, 5)
	if got != "Item 2/5..." {
		t.Errorf("ItemTitle(2, 5) = %q, want %q", got, "Item 2/5...")
	}
}

func TestCountItems_PartialExpansionReturnsIdsSeen(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp script test requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available in test environment")
	}

	script := "#!/bin/sh\nprintf \"id1\\nid2\\nid3\\n\"\necho \"ERROR: Playlist fetch interrupted\" 1>&2\nexit 1\n"
	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	p := New(path)
	count, err := p.CountItems(context.Background(), "https://example/playlist")

	var partial *PartialExpansionError
	if !asPartialExpansionError(err, &partial) {
		t.Fatalf("CountItems() error = %v, want a *PartialExpansionError", err)
	}
	if count != 3 || partial.Count != 3 {
		t.Errorf("CountItems() count = %d, partial.Count = %d, want 3", count, partial.Count)
	}
	if partial.Reason != "Playlist fetch interrupted" {
		t.Errorf("partial.Reason = %q, want %q", partial.Reason, "Playlist fetch interrupted")
	}
}

func asPartialExpansionError(err error, target **PartialExpansionError) bool {
	pe, ok := err.(*PartialExpansionError)
	if !ok {
		return false
	}
	*target = pe
	return true
}
