package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToStart: true}, zerolog.Nop())

	now := time.Date(2025, 6, 1, 10, 17, 33, 0, time.UTC)
	next := s.nextTick(now)
	expected := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	if !next.Equal(expected) {
		t.Fatalf("expected %s, got %s", expected, next)
	}

	// Exactly on the boundary advances to the next bucket.
	next = s.nextTick(expected)
	if !next.Equal(expected.Add(time.Hour)) {
		t.Fatalf("boundary should advance a full interval, got %s", next)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())

	now := time.Date(2025, 6, 1, 10, 17, 33, 0, time.UTC)
	next := s.nextTick(now)
	if !next.Equal(now.Add(time.Hour)) {
		t.Fatalf("unaligned schedule should offset from now, got %s", next)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour, StartupDelay: time.Minute}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(ctx context.Context, bucket time.Time) error { return nil })
	if err == nil {
		t.Fatal("cancelled context should stop the loop with an error")
	}
}
