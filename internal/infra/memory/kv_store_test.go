package memory

import (
	"context"
	"strconv"
	"sync"
	"testing"
)

func TestKVStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore()

	if _, ok, _ := store.Get(ctx, "quizHighScore"); ok {
		t.Fatalf("expected key absent")
	}
	if err := store.Set(ctx, "quizHighScore", "7"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := store.Get(ctx, "quizHighScore")
	if err != nil || !ok || v != "7" {
		t.Fatalf("expected 7, got %q ok=%v err=%v", v, ok, err)
	}

	if err := store.Remove(ctx, "quizHighScore"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "quizHighScore"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestKVStoreSetIfGreaterUnderContention(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore()
	if err := store.Set(ctx, "quizHighScore", "5"); err != nil {
		t.Fatalf("set: %v", err)
	}

	var wg sync.WaitGroup
	for score := 1; score <= 20; score++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			if _, _, err := store.SetIfGreater(ctx, "quizHighScore", score); err != nil {
				t.Errorf("set-if-greater %d: %v", score, err)
			}
		}(score)
	}
	wg.Wait()

	v, _, _ := store.Get(ctx, "quizHighScore")
	if v != strconv.Itoa(20) {
		t.Fatalf("expected 20 to win, got %q", v)
	}

	stored, updated, _ := store.SetIfGreater(ctx, "quizHighScore", 20)
	if updated || stored != 20 {
		t.Fatalf("equal score must not write, got stored=%d updated=%v", stored, updated)
	}
}

func TestKVStoreSetIfGreaterReplacesMalformedValue(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore()
	if err := store.Set(ctx, "quizHighScore", "lots"); err != nil {
		t.Fatalf("set: %v", err)
	}
	stored, updated, err := store.SetIfGreater(ctx, "quizHighScore", 1)
	if err != nil || !updated || stored != 1 {
		t.Fatalf("expected malformed value replaced, got stored=%d updated=%v err=%v", stored, updated, err)
	}
}
