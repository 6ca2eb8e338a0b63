// Package logging builds the process logger: colored console output plus a rotating log file.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

type Options struct {
	// LogFile is the path of the persistent log. Empty disables file logging.
	LogFile string
	Level   slog.Level
	Console io.Writer
}

// Logger bundles the configured logger with the resources backing it.
type Logger struct {
	*slog.Logger
	File   *File
	writer *LineWriter
}

func New(opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	handlers := []slog.Handler{
		tint.NewHandler(console, &tint.Options{
			Level:      opts.Level,
			TimeFormat: consoleTimeFormat,
			NoColor:    !isTerminal(console),
		}),
	}

	l := &Logger{}
	if opts.LogFile != "" {
		file, err := OpenFile(opts.LogFile)
		if err != nil {
			return nil, err
		}
		l.File = file
		l.writer = NewLineWriter(file)
		handlers = append(handlers, slog.NewTextHandler(l.writer, &slog.HandlerOptions{
			Level: opts.Level,
			// the line writer stamps the time itself
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.Attr{}
				}
				return a
			},
		}))
	}

	l.Logger = slog.New(NewMultiHandler(handlers...))
	return l, nil
}

func (l *Logger) Close() error {
	if l.File == nil {
		return nil
	}
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.File.Close()
}

// Discard returns a logger that drops everything, for tests and library defaults.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
