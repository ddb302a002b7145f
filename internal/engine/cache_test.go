package engine

import (
	"context"
	"errors"
	"testing"
)

type countingLoader struct {
	loads   int
	failFor string
}

type nopHandle struct{}

func (nopHandle) Run(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	return &Result{}, nil
}

func (l *countingLoader) Load(ctx context.Context, model, device string) (Handle, error) {
	l.loads++
	if model == l.failFor {
		return nil, errors.New("load failed")
	}
	return nopHandle{}, nil
}

func TestCacheLoadsOncePerModel(t *testing.T) {
	loader := &countingLoader{}
	cache := NewCache(loader)
	ctx := context.Background()

	if cache.Cached("tiny") {
		t.Fatal("nothing should be cached yet")
	}

	h1, err := cache.Get(ctx, "tiny", "cpu")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := cache.Get(ctx, "tiny", "cpu")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected memoized handle")
	}
	if loader.loads != 1 {
		t.Fatalf("expected 1 load, got %d", loader.loads)
	}
	if !cache.Cached("tiny") {
		t.Fatal("tiny should be cached")
	}

	if _, err := cache.Get(ctx, "base", "cpu"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loader.loads != 2 {
		t.Fatalf("expected 2 loads, got %d", loader.loads)
	}
}

func TestCacheFailedLoadNotMemoized(t *testing.T) {
	loader := &countingLoader{failFor: "broken"}
	cache := NewCache(loader)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "broken", "cpu"); err == nil {
		t.Fatal("expected load error")
	}
	if cache.Cached("broken") {
		t.Fatal("failed load must not be cached")
	}

	loader.failFor = ""
	if _, err := cache.Get(ctx, "broken", "cpu"); err != nil {
		t.Fatalf("retry after failure should succeed: %v", err)
	}
	if loader.loads != 2 {
		t.Fatalf("expected 2 load attempts, got %d", loader.loads)
	}
}
