package searchcore

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// backgroundController bounds how many background jobs — segment merges,
// warm-worker reload cycles — run at once, grounded on the teacher's
// resource.Controller (its bgSem field); this façade only needs the
// concurrency-bounding half of that controller, not its memory tracking.
type backgroundController struct {
	sem *semaphore.Weighted
}

func newBackgroundController(maxConcurrent int64) *backgroundController {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &backgroundController{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Acquire blocks until a background slot is free or ctx is canceled.
func (c *backgroundController) Acquire(ctx context.Context) error {
	return c.sem.Acquire(ctx, 1)
}

// TryAcquire reserves a slot without blocking; used by the warm worker,
// which should skip a cycle rather than queue behind a merge.
func (c *backgroundController) TryAcquire() bool {
	return c.sem.TryAcquire(1)
}

// Release frees a background slot.
func (c *backgroundController) Release() {
	c.sem.Release(1)
}
