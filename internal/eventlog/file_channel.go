package eventlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"winsentry/internal/parser"

	"github.com/rs/zerolog/log"
)

const (
	defaultBatchSize = 64
	readBlockSize    = 64 * 1024
)

// FileChannel reads an exported JSON-lines event log newest first, walking the
// file backwards from its size at open time. Lines appended after Open are not
// visible to that handle.
type FileChannel struct {
	path      string
	batchSize int

	mu      sync.Mutex
	nextID  Handle
	cursors map[Handle]*fileCursor
}

type fileCursor struct {
	f       *os.File
	offset  int64
	carry   []byte
	pending [][]byte
	done    bool
}

func NewFileChannel(path string, batchSize int) *FileChannel {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &FileChannel{
		path:      path,
		batchSize: batchSize,
		cursors:   make(map[Handle]*fileCursor),
	}
}

// Open ignores server; name is used only when the channel was built without a path.
func (c *FileChannel) Open(ctx context.Context, server, name string) (Handle, error) {
	path := c.path
	if path == "" {
		path = name
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return 0, &AccessDeniedError{Channel: path, Err: err}
		}
		return 0, fmt.Errorf("failed to open event file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to stat event file %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	h := c.nextID
	c.cursors[h] = &fileCursor{f: f, offset: info.Size()}
	log.Trace().Str("file", path).Int64("size", info.Size()).Uint64("handle", uint64(h)).Msg("Opened event file")
	return h, nil
}

func (c *FileChannel) ReadBatch(ctx context.Context, h Handle, dir Direction) ([]Record, error) {
	if dir != Backward {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDirection, dir)
	}
	c.mu.Lock()
	cur, ok := c.cursors[h]
	c.mu.Unlock()
	if !ok {
		return nil, ErrUnknownHandle
	}

	records := make([]Record, 0, c.batchSize)
	for len(records) < c.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines, err := cur.nextLines(c.batchSize - len(records))
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			break
		}
		for _, line := range lines {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			records = append(records, lineRecord(line))
		}
	}
	return records, nil
}

func (c *FileChannel) Close(h Handle) error {
	c.mu.Lock()
	cur, ok := c.cursors[h]
	delete(c.cursors, h)
	c.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}
	return cur.f.Close()
}

func lineRecord(line []byte) Record {
	ev, err := parser.ParseEventLine(line)
	if err == nil {
		return Record{Event: ev}
	}
	id, ok := parser.PeekEventID(line)
	if !ok {
		log.Debug().Err(err).Msg("Skipping event line without an id")
	}
	ev.ID = id
	return Record{Event: ev, Err: fmt.Errorf("%w: %v", ErrMalformedEvent, err)}
}

// nextLines returns up to n complete lines, newest first.
func (cur *fileCursor) nextLines(n int) ([][]byte, error) {
	for len(cur.pending) < n && !cur.done {
		if cur.offset == 0 {
			if len(cur.carry) > 0 {
				cur.pending = append(cur.pending, cur.carry)
				cur.carry = nil
			}
			cur.done = true
			break
		}

		size := int64(readBlockSize)
		if cur.offset < size {
			size = cur.offset
		}
		cur.offset -= size
		block := make([]byte, size, size+int64(len(cur.carry)))
		if _, err := cur.f.ReadAt(block, cur.offset); err != nil {
			return nil, fmt.Errorf("failed to read event file at offset %d: %w", cur.offset, err)
		}
		block = append(block, cur.carry...)

		lines := bytes.Split(block, []byte{'\n'})
		// The first piece may continue in the previous block.
		cur.carry = lines[0]
		for i := len(lines) - 1; i >= 1; i-- {
			cur.pending = append(cur.pending, lines[i])
		}
	}

	take := n
	if take > len(cur.pending) {
		take = len(cur.pending)
	}
	out := cur.pending[:take]
	cur.pending = cur.pending[take:]
	return out, nil
}
