package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "marauders.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWithRetry(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "retry.db"), WithRetry(0, time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()
	if s.retries != 0 || s.backoff != time.Millisecond {
		t.Errorf("expected 0 retries with 1ms backoff, got %d/%v", s.retries, s.backoff)
	}
	if _, err := s.RecordStars(context.Background(), 1, 2); err != nil {
		t.Errorf("write without retries failed: %v", err)
	}

	// A non-positive backoff keeps the default.
	d, err := New(filepath.Join(t.TempDir(), "default.db"), WithRetry(3, 0))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if d.retries != 3 || d.backoff != 20*time.Millisecond {
		t.Errorf("expected 3 retries with the default backoff, got %d/%v", d.retries, d.backoff)
	}
}

func TestRecordStarsNeverDecreases(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	steps := []struct {
		stars    int
		best     int
		improved bool
	}{
		{2, 2, true},
		{1, 2, false},
		{4, 4, true},
		{4, 4, false},
		{0, 4, false},
		{-3, 4, false},
		{5, 5, true},
	}
	for i, step := range steps {
		up, err := s.RecordStars(ctx, 3, step.stars)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if up.Best != step.best || up.Improved != step.improved {
			t.Errorf("step %d: expected best %d improved %v, got %+v", i, step.best, step.improved, up)
		}
	}

	best, err := s.BestStars(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if best[3] != 5 {
		t.Errorf("expected wave 3 best 5, got %d", best[3])
	}
}

func TestRecordStarsPerWave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for wave, stars := range map[int]int{1: 3, 2: 1, 7: 5} {
		if _, err := s.RecordStars(ctx, wave, stars); err != nil {
			t.Fatal(err)
		}
	}
	best, err := s.BestStars(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(best) != 3 || best[1] != 3 || best[2] != 1 || best[7] != 5 {
		t.Errorf("unexpected best stars %v", best)
	}

	if _, err := s.RecordStars(ctx, 0, 3); !errors.Is(err, ErrInvalidWave) {
		t.Errorf("expected ErrInvalidWave, got %v", err)
	}
}

func TestSaveAndListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var saved []RunRecord
	for i, score := range []int{120, 900, 450} {
		r, err := s.SaveRun(ctx, RunRecord{
			Seed:           "alpha",
			NormalizedSeed: 92909918,
			Wave:           1 + i,
			Phase:          "complete",
			Score:          score,
			Stars:          i + 1,
			Survivors:      10 * (i + 1),
			Optimal:        40,
			Elapsed:        55.5,
			Gates:          7,
			OptimalChoices: 4,
		})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		if r.ID == uuid.Nil || r.CreatedAt.IsZero() {
			t.Fatalf("expected id and timestamp to be assigned, got %+v", r)
		}
		saved = append(saved, r)
	}

	runs, err := s.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != saved[2].ID {
		t.Errorf("expected newest run first")
	}
	if runs[2].NormalizedSeed != 92909918 || runs[2].Elapsed != 55.5 {
		t.Errorf("run fields did not round trip: %+v", runs[2])
	}

	page, err := s.ListRuns(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != saved[1].ID {
		t.Errorf("unexpected page %+v", page)
	}

	got, err := s.GetRun(ctx, saved[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Score != 900 || got.Wave != 2 {
		t.Errorf("unexpected run %+v", got)
	}
	if _, err := s.GetRun(ctx, uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	high, ok, err := s.HighScore(ctx)
	if err != nil || !ok {
		t.Fatalf("expected a high score, got %v %v", ok, err)
	}
	if high.Score != 900 {
		t.Errorf("expected high score 900, got %d", high.Score)
	}
}

func TestHighScoreEmpty(t *testing.T) {
	s := newTestStore(t)
	if _, ok, err := s.HighScore(context.Background()); ok || err != nil {
		t.Errorf("expected no high score, got %v %v", ok, err)
	}
	runs, err := s.ListRuns(context.Background(), 0, 0)
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %d %v", len(runs), err)
	}
}

func TestSaveRunRejectsInvalidWave(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.SaveRun(context.Background(), RunRecord{Seed: "x"}); !errors.Is(err, ErrInvalidWave) {
		t.Errorf("expected ErrInvalidWave, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordStars(context.Background(), 2, 4); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	best, err := s.BestStars(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if best[2] != 4 {
		t.Errorf("expected persisted stars 4, got %d", best[2])
	}
}

func TestExportCSV(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.SaveRun(ctx, RunRecord{Seed: "a,b", Wave: 1, Phase: "failed", Score: 10}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := s.ExportCSV(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,seed,wave") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], `"a,b",1,failed,10`) {
		t.Errorf("unexpected row %q", lines[1])
	}
}

func TestIsBusyErr(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("database table is locked"), true},
		{errors.New("UNIQUE constraint failed"), false},
	}
	for _, tt := range tests {
		if got := isBusyErr(tt.err); got != tt.want {
			t.Errorf("isBusyErr(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
