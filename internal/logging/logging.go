package logging

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"winsentry/config"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup points the global logger at an append-only JSON file and, when console
// is set, a human readable stderr writer. The returned closer releases the file.
func Setup(cfg config.LogConfig, console bool) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
			TimeFormat: "15:04:05",
		})
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		writers = append(writers, f)
		closer = f
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// tailBlockSize is how much of the log TailFile reads per step from the end.
const tailBlockSize = 16 * 1024

// TailFile returns up to n trailing lines of path. A missing file yields no lines.
// The file is read backward from EOF so a large log is never loaded whole.
func TailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	defer f.Close()
	if n <= 0 {
		return []string{}, nil
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat log file %s: %w", path, err)
	}

	// n lines are complete once n newlines follow the start of the buffer
	offset := info.Size()
	var data []byte
	for offset > 0 && bytes.Count(bytes.TrimRight(data, "\n"), []byte{'\n'}) < n {
		size := min(int64(tailBlockSize), offset)
		offset -= size
		block := make([]byte, size, size+int64(len(data)))
		if _, err := f.ReadAt(block, offset); err != nil {
			return nil, fmt.Errorf("failed to read log file %s at offset %d: %w", path, offset, err)
		}
		data = append(block, data...)
	}

	data = bytes.TrimRight(data, "\n")
	if len(data) == 0 {
		return []string{}, nil
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
