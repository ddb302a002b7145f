package engine

import "context"

// Cache memoizes loaded engine handles by model name. It is not safe for
// concurrent use: the single-worker execution model guarantees only one
// goroutine ever calls Get, which is what makes "at most one load attempt
// per model name" hold without a lock. With multiple workers, loads would
// need per-model mutual exclusion.
type Cache struct {
	loader  Loader
	handles map[string]Handle
}

func NewCache(loader Loader) *Cache {
	return &Cache{
		loader:  loader,
		handles: make(map[string]Handle),
	}
}

// Cached reports whether a handle for model is already loaded. The worker
// checks this before Get to decide whether to broadcast the loading_model
// state to waiting jobs.
func (c *Cache) Cached(model string) bool {
	_, ok := c.handles[model]
	return ok
}

// Get returns the memoized handle for model, loading it on first use.
// A failed load is not memoized, so a later job may retry it.
func (c *Cache) Get(ctx context.Context, model, device string) (Handle, error) {
	if h, ok := c.handles[model]; ok {
		return h, nil
	}

	h, err := c.loader.Load(ctx, model, device)
	if err != nil {
		return nil, err
	}

	c.handles[model] = h
	return h, nil
}
