package seed

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"winsentry/internal/model"
	"winsentry/internal/parser"
)

// Writer stores seeded events in some event source.
type Writer interface {
	Write(ctx context.Context, events []model.RawEvent) error
}

// FileWriter appends events to a JSON lines export, oldest first, so the file
// channel reads them back newest first.
type FileWriter struct {
	path string
}

func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

func (w *FileWriter) Write(ctx context.Context, events []model.RawEvent) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", w.path, err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", w.path, err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := parser.EncodeEventLine(ev)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}
	return f.Sync()
}
