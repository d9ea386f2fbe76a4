package jobstore

import (
	"testing"
)

func newTestJob(title string) *Job {
	return NewJob("https://example/v/"+title, JobOptions{
		OutputDir:        "/tmp",
		FilenameTemplate: "%(title)s.%(ext)s",
		Kind:             KindVideo,
		VideoResolution:  "1080",
	}, title, nil)
}

func TestStore_AddPreservesInsertionOrder(t *testing.T) {
	s := New(nil)
	j1 := newTestJob("a")
	j2 := newTestJob("b")
	j3 := newTestJob("c")

	s.Add(j1)
	s.Add(j2)
	s.Add(j3)

	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() len = %d, want 3", len(snap))
	}
	if snap[0].Title != "a" || snap[1].Title != "b" || snap[2].Title != "c" {
		t.Errorf("insertion order not preserved: %q %q %q", snap[0].Title, snap[1].Title, snap[2].Title)
	}
}

func TestStore_Update(t *testing.T) {
	s := New(nil)
	j := newTestJob("a")
	s.Add(j)

	s.Update(j.ID, func(job *Job) {
		job.Status = StatusDownloading
		job.Progress = "42.0%"
	})

	got := s.Get(j.ID)
	if got.Status != StatusDownloading {
		t.Errorf("Status = %q, want %q", got.Status, StatusDownloading)
	}
	if got.Progress != "42.0%" {
		t.Errorf("Progress = %q, want %q", got.Progress, "42.0%")
	}
}

func TestStore_Get_ReturnsDefensiveCopy(t *testing.T) {
	s := New(nil)
	j := newTestJob("a")
	s.Add(j)

	got := s.Get(j.ID)
	got.Title = "mutated"

	again := s.Get(j.ID)
	if again.Title == "mutated" {
		t.Error("Get() should return a defensive copy, not a shared pointer")
	}
}

func TestStore_Remove(t *testing.T) {
	s := New(nil)
	j1 := newTestJob("a")
	j2 := newTestJob("b")
	s.Add(j1)
	s.Add(j2)

	s.Remove(j1.ID)

	if s.Get(j1.ID) != nil {
		t.Error("removed job should no longer be retrievable")
	}
	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].ID != j2.ID {
		t.Errorf("Snapshot() after Remove = %+v, want only j2", snap)
	}
}

func TestStore_Clear(t *testing.T) {
	s := New(nil)
	s.Add(newTestJob("a"))
	s.Add(newTestJob("b"))

	removed := s.Clear()
	if len(removed) != 2 {
		t.Errorf("Clear() returned %d ids, want 2", len(removed))
	}
	if s.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", s.Len())
	}
}

func TestStore_NotifiesDeltaOnChange(t *testing.T) {
	var deltas []Delta
	s := New(func(d Delta) { deltas = append(deltas, d) })

	j := newTestJob("a")
	s.Add(j)
	s.Update(j.ID, func(job *Job) { job.Status = StatusCompleted })
	s.Remove(j.ID)

	if len(deltas) != 3 {
		t.Fatalf("got %d deltas, want 3", len(deltas))
	}
	if len(deltas[0].Added) != 1 || deltas[0].Added[0] != j.ID {
		t.Errorf("first delta should report Added, got %+v", deltas[0])
	}
	if len(deltas[1].Updated) != 1 || deltas[1].Updated[0] != j.ID {
		t.Errorf("second delta should report Updated, got %+v", deltas[1])
	}
	if len(deltas[2].Removed) != 1 || deltas[2].Removed[0] != j.ID {
		t.Errorf("third delta should report Removed, got %+v", deltas[2])
	}
}

func TestStore_IDsWithStatus(t *testing.T) {
	s := New(nil)
	j1 := newTestJob("a")
	j2 := newTestJob("b")
	s.Add(j1)
	s.Add(j2)
	s.Update(j1.ID, func(j *Job) { j.SetFailed("boom") })

	ids := s.IDsWithStatus(StatusFailed)
	if len(ids) != 1 || ids[0] != j1.ID {
		t.Errorf("IDsWithStatus(Failed) = %v, want [%s]", ids, j1.ID)
	}
}

func TestJob_SetFailed_TruncatesReason(t *testing.T) {
	j := newTestJob("a")
	long := "this reason is considerably longer than sixty characters in total length"
	j.SetFailed(long)

	if len(j.Reason) != 60 {
		t.Errorf("Reason length = %d, want 60", len(j.Reason))
	}
	if j.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", j.Status, StatusFailed)
	}
}

func TestJob_SetCompleted_ForcesFullProgress(t *testing.T) {
	j := newTestJob("a")
	j.Progress = "42.0%"
	j.SetCompleted()

	if j.Progress != "100.0%" {
		t.Errorf("Progress = %q, want %q", j.Progress, "100.0%")
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusQueued, false},
		{StatusDownloading, false},
		{StatusMerging, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
		{StatusError, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("Status(%q).IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
