package domain

import "testing"

func TestRequestQueue_FIFO(t *testing.T) {
	var q RequestQueue

	if q.Pop() != nil {
		t.Fatal("expected nil from empty queue")
	}

	first := NewPlaybackRequest(PlaybackRequest{Title: "first"})
	second := NewPlaybackRequest(PlaybackRequest{Title: "second"})
	q.Push(first)
	q.Push(second)

	if q.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", q.Len())
	}
	if got := q.Pop(); got != first {
		t.Errorf("expected first, got %v", got.Title)
	}
	if got := q.Pop(); got != second {
		t.Errorf("expected second, got %v", got.Title)
	}
	if !q.IsEmpty() {
		t.Error("expected queue to be empty")
	}
}

func TestRequestQueue_SnapshotIsCopy(t *testing.T) {
	var q RequestQueue
	q.Push(NewPlaybackRequest(PlaybackRequest{Title: "a"}))
	q.Push(NewPlaybackRequest(PlaybackRequest{Title: "b"}))

	snap := q.Snapshot()
	snap[0].Title = "changed"

	if got := q.Pop(); got.Title != "a" {
		t.Errorf("expected snapshot mutation not to leak, got %q", got.Title)
	}
	if q.Len() != 1 {
		t.Errorf("expected snapshot not to consume the queue, got len %d", q.Len())
	}
}

func TestNewPlaybackRequest(t *testing.T) {
	r := NewPlaybackRequest(PlaybackRequest{Source: "/tmp/a.mp3", SeekOffset: -5})

	if r.ID == "" {
		t.Error("expected an ID to be assigned")
	}
	if r.SeekOffset != 0 {
		t.Errorf("expected negative offset to be clamped, got %v", r.SeekOffset)
	}
	if r.EnqueuedAt.IsZero() {
		t.Error("expected enqueue time to be set")
	}
	if r.Completion() == nil {
		t.Fatal("expected a completion")
	}

	other := NewPlaybackRequest(PlaybackRequest{ID: "fixed"})
	if other.ID != "fixed" {
		t.Errorf("expected explicit ID to be kept, got %q", other.ID)
	}
	if other.Completion() == r.Completion() {
		t.Error("expected distinct completions")
	}
}
