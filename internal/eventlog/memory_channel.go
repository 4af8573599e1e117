package eventlog

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryChannel serves a fixed list of records, newest first. It is used for
// demos and tests; failure and latency hooks let callers script a bad channel.
type MemoryChannel struct {
	BatchSize int
	// OpenErr is returned by every Open when set.
	OpenErr error
	// FailAfter makes the read after that many successful batches return ReadErr.
	FailAfter int
	ReadErr   error
	// Delay blocks every read until it elapses or ctx is done.
	Delay <-chan struct{}

	mu      sync.Mutex
	records []Record
	nextID  Handle
	cursors map[Handle]*memoryCursor

	opens  atomic.Int64
	closes atomic.Int64
}

type memoryCursor struct {
	pos     int
	batches int
}

func NewMemoryChannel(records ...Record) *MemoryChannel {
	return &MemoryChannel{
		BatchSize: defaultBatchSize,
		records:   records,
		cursors:   make(map[Handle]*memoryCursor),
	}
}

// SetRecords replaces the records served to handles opened afterwards.
func (c *MemoryChannel) SetRecords(records ...Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = records
}

func (c *MemoryChannel) Open(ctx context.Context, server, name string) (Handle, error) {
	if c.OpenErr != nil {
		return 0, c.OpenErr
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.cursors[c.nextID] = &memoryCursor{}
	c.opens.Add(1)
	return c.nextID, nil
}

func (c *MemoryChannel) ReadBatch(ctx context.Context, h Handle, dir Direction) ([]Record, error) {
	if dir != Backward {
		return nil, ErrUnsupportedDirection
	}
	if c.Delay != nil {
		select {
		case <-c.Delay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.cursors[h]
	if !ok {
		return nil, ErrUnknownHandle
	}
	if c.ReadErr != nil && cur.batches >= c.FailAfter {
		return nil, c.ReadErr
	}
	size := c.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	end := cur.pos + size
	if end > len(c.records) {
		end = len(c.records)
	}
	out := make([]Record, end-cur.pos)
	copy(out, c.records[cur.pos:end])
	cur.pos = end
	cur.batches++
	return out, nil
}

func (c *MemoryChannel) Close(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cursors[h]; !ok {
		return ErrUnknownHandle
	}
	delete(c.cursors, h)
	c.closes.Add(1)
	return nil
}

func (c *MemoryChannel) Opens() int64  { return c.opens.Load() }
func (c *MemoryChannel) Closes() int64 { return c.closes.Load() }
