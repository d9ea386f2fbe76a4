package orchestrator

import (
	"testing"

	"ytbatch/internal/jobstore"
)

func TestParseDestination(t *testing.T) {
	stem, ok := parseDestination("[download] Destination: /out/Some Title [abc123].mp4")
	if !ok {
		t.Fatal("parseDestination() ok = false, want true")
	}
	if stem != "Some Title [abc123]" {
		t.Errorf("parseDestination() = %q, want %q", stem, "Some Title [abc123]")
	}
}

func TestParseDestination_NoMatch(t *testing.T) {
	if _, ok := parseDestination("[download] 50.0% of 10MiB"); ok {
		t.Error("parseDestination() should not match a non-Destination line")
	}
}

func TestParseErrorLine(t *testing.T) {
	reason, ok := parseErrorLine("ERROR: Video unavailable")
	if !ok || reason != "Video unavailable" {
		t.Errorf("parseErrorLine() = (%q, %v), want (%q, true)", reason, ok, "Video unavailable")
	}
}

func TestMatchStageMarker(t *testing.T) {
	m, ok := matchStageMarker("[Metadata] Adding metadata to 'file.mp4'")
	if !ok {
		t.Fatal("matchStageMarker() ok = false, want true")
	}
	if m.text != "Writing Metadata…" {
		t.Errorf("matchStageMarker() text = %q, want %q", m.text, "Writing Metadata…")
	}
}

func TestMatchStageMarker_CaseInsensitive(t *testing.T) {
	m, ok := matchStageMarker("[Merger] Merging formats into \"file.mp4\"")
	if !ok {
		t.Fatal("matchStageMarker() ok = false, want true")
	}
	if m.status != jobstore.StatusMerging {
		t.Errorf("matchStageMarker() status = %v, want %v", m.status, jobstore.StatusMerging)
	}
}

func TestParseProgress_PrefersProgressMarker(t *testing.T) {
	pct, ok := parseProgress("PROGRESS:: 42.5%")
	if !ok || pct != "42.5%" {
		t.Errorf("parseProgress() = (%q, %v), want (%q, true)", pct, ok, "42.5%")
	}
}

func TestParseProgress_FallsBackToDownloadLine(t *testing.T) {
	pct, ok := parseProgress("[download]  37.2% of 10.00MiB at 1.20MiB/s ETA 00:05")
	if !ok || pct != "37.2%" {
		t.Errorf("parseProgress() = (%q, %v), want (%q, true)", pct, ok, "37.2%")
	}
}

func TestParseProgress_NoMatch(t *testing.T) {
	if _, ok := parseProgress("some unrelated line"); ok {
		t.Error("parseProgress() should not match an unrelated line")
	}
}
