package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()

	if _, ok, err := s.Get(ctx, id); err != nil || ok {
		t.Fatalf("unknown run: ok=%v err=%v", ok, err)
	}
	start := time.Now().UTC().Truncate(time.Millisecond)
	in := Status{
		Status:   StateRunning,
		Stage:    "chunk",
		Progress: 40,
		Message:  "splitting questions",
		Start:    &start,
		Metadata: map[string]any{"chunks": float64(12)},
	}
	if err := s.Set(ctx, id, in); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Status != in.Status || got.Stage != in.Stage || got.Progress != 40 || got.Message != in.Message {
		t.Errorf("got %+v", got)
	}
	if got.Start == nil || !got.Start.Equal(start) {
		t.Errorf("start = %v, want %v", got.Start, start)
	}
	if got.Metadata["chunks"] != float64(12) {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestMemory(t *testing.T) { exercise(t, NewMemory()) }

func TestRedisStatus(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	s, err := NewRedisStatus(context.Background(), url, time.Minute)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer s.Close()
	exercise(t, s)
}
