package throttle

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter is the single-instance counter store: a mutex-guarded map
// with a janitor goroutine that evicts entries whose window has elapsed.
// It is created at process start and torn down with Close; losing the
// counters on restart is acceptable.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	done    chan struct{}
	once    sync.Once
}

func NewMemoryCounter(sweepEvery time.Duration) *MemoryCounter {
	c := &MemoryCounter{
		entries: make(map[string]*memoryEntry),
		done:    make(chan struct{}),
	}

	go c.janitor(sweepEvery)
	return c
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &memoryEntry{resetAt: now.Add(window)}
		c.entries[key] = e
	}

	e.count++
	return e.count, nil
}

func (c *MemoryCounter) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *MemoryCounter) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-t.C:
			c.mu.Lock()
			for key, e := range c.entries {
				if now.After(e.resetAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
