package logging

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LineWriter prefixes every complete line written to it with a sequence number and an
// RFC3339 timestamp before passing it on to the target. Partial lines are held until the
// newline arrives or Flush is called.
type LineWriter struct {
	target  io.Writer
	seq     atomic.Uint64
	mu      sync.Mutex
	pending bytes.Buffer
	now     func() time.Time
}

func NewLineWriter(target io.Writer) *LineWriter {
	return &LineWriter{
		target: target,
		now:    time.Now,
	}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending.Write(p)
	for {
		idx := bytes.IndexByte(w.pending.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := w.pending.Next(idx + 1)
		if err := w.writeLine(line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush writes out any buffered partial line.
func (w *LineWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending.Len() == 0 {
		return nil
	}
	line := append(bytes.Clone(w.pending.Bytes()), '\n')
	w.pending.Reset()
	return w.writeLine(line)
}

func (w *LineWriter) writeLine(line []byte) error {
	prefix := slog.Uint64("line", w.seq.Add(1)).String() + " " +
		slog.String("time", w.now().Format(time.RFC3339)).String() + " "

	buf := make([]byte, 0, len(prefix)+len(line))
	buf = append(buf, prefix...)
	buf = append(buf, line...)
	_, err := w.target.Write(buf)
	return err
}
