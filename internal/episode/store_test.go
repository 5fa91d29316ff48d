package episode

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"podpress/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.DatabaseConfig{Path: filepath.Join(t.TempDir(), "episodes.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ep := &types.Episode{ID: "ep-1", Title: "First Episode", AudioURL: "http://store/raw.wav"}
	if err := s.Create(ctx, ep); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "ep-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "First Episode" || got.AudioURL != "http://store/raw.wav" {
		t.Errorf("got %+v", got)
	}
	if got.Status != types.EpisodeQueued {
		t.Errorf("status = %q, want queued", got.Status)
	}
	if got.ProcessingStatus != types.ProcessingPending {
		t.Errorf("processing status = %q, want pending", got.ProcessingStatus)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestBeginProcessingGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, &types.Episode{ID: "ep-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.BeginProcessing(ctx, "ep-1"); err != nil {
		t.Fatalf("first BeginProcessing: %v", err)
	}
	// A second caller must lose the race while the first holds the slot.
	if err := s.BeginProcessing(ctx, "ep-1"); !errors.Is(err, ErrAlreadyProcessing) {
		t.Fatalf("second BeginProcessing = %v, want ErrAlreadyProcessing", err)
	}

	got, err := s.Get(ctx, "ep-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ProcessingStatus != types.ProcessingProcessing {
		t.Errorf("processing status = %q, want processing", got.ProcessingStatus)
	}
}

func TestBeginProcessingAfterError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, &types.Episode{ID: "ep-1", AudioURL: "http://store/raw.wav"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.BeginProcessing(ctx, "ep-1"); err != nil {
		t.Fatalf("BeginProcessing: %v", err)
	}
	if err := s.FailProcessing(ctx, "ep-1", "enhancement unavailable"); err != nil {
		t.Fatalf("FailProcessing: %v", err)
	}

	// Errored episodes are retryable; the retry clears the old error.
	if err := s.BeginProcessing(ctx, "ep-1"); err != nil {
		t.Fatalf("retry BeginProcessing: %v", err)
	}
	got, _ := s.Get(ctx, "ep-1")
	if got.ProcessingError != "" {
		t.Errorf("processing error = %q, want cleared", got.ProcessingError)
	}
}

func TestBeginProcessingMissing(t *testing.T) {
	s := newTestStore(t)
	if err := s.BeginProcessing(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCompleteProcessing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, &types.Episode{ID: "ep-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.BeginProcessing(ctx, "ep-1"); err != nil {
		t.Fatalf("BeginProcessing: %v", err)
	}
	if err := s.CompleteProcessing(ctx, "ep-1", "http://store/processed.wav"); err != nil {
		t.Fatalf("CompleteProcessing: %v", err)
	}

	got, err := s.Get(ctx, "ep-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ProcessedAudioURL != "http://store/processed.wav" {
		t.Errorf("processed url = %q", got.ProcessedAudioURL)
	}
	if got.ProcessingStatus != types.ProcessingCompleted {
		t.Errorf("processing status = %q, want completed", got.ProcessingStatus)
	}
	if got.Status != types.EpisodeCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
}

func TestFailProcessingKeepsEpisodeUsable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, &types.Episode{ID: "ep-1", AudioURL: "http://store/raw.wav"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.FailProcessing(ctx, "ep-1", "remote service exhausted"); err != nil {
		t.Fatalf("FailProcessing: %v", err)
	}

	got, _ := s.Get(ctx, "ep-1")
	if got.ProcessingStatus != types.ProcessingError {
		t.Errorf("processing status = %q, want error", got.ProcessingStatus)
	}
	if got.ProcessingError != "remote service exhausted" {
		t.Errorf("processing error = %q", got.ProcessingError)
	}
	// Raw audio exists, so the episode itself still completes.
	if got.Status != types.EpisodeCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
}

func TestFailProcessingWithoutAudio(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, &types.Episode{ID: "ep-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.FailProcessing(ctx, "ep-1", "nothing worked"); err != nil {
		t.Fatalf("FailProcessing: %v", err)
	}

	got, _ := s.Get(ctx, "ep-1")
	if got.Status != types.EpisodeError {
		t.Errorf("status = %q, want error (no raw audio to fall back on)", got.Status)
	}
}

func TestSetRawAudioAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, &types.Episode{ID: "ep-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SetRawAudio(ctx, "ep-1", "http://store/raw_podcast_ep-1.wav"); err != nil {
		t.Fatalf("SetRawAudio: %v", err)
	}
	if err := s.SetStatus(ctx, "ep-1", types.EpisodeProcessingAudio); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	got, _ := s.Get(ctx, "ep-1")
	if got.RawAudioURL != "http://store/raw_podcast_ep-1.wav" {
		t.Errorf("raw url = %q", got.RawAudioURL)
	}
	if got.Status != types.EpisodeProcessingAudio {
		t.Errorf("status = %q", got.Status)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.db")
	ctx := context.Background()

	s, err := Open(types.DatabaseConfig{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Create(ctx, &types.Episode{ID: "ep-1", Title: "Persisted"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.Close()

	s2, err := Open(types.DatabaseConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, "ep-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Title != "Persisted" {
		t.Errorf("title = %q", got.Title)
	}
}
