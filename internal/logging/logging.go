// Package logging configures the global zerolog logger used for diagnostics.
// Diagnostics go to stderr; progress output is written by the formatter.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the name of the diagnostic log written into a run directory
const FileName = "debug.log"

const (
	maxSizeMB  = 10
	maxBackups = 3
)

var (
	mu            sync.Mutex
	fileWriter    io.WriteCloser
	consoleLogger *zerolog.Logger
)

// Options controls where diagnostics go
type Options struct {
	Level string    // zerolog level name, empty means warn
	Dir   string    // when set, a rotating debug.log is kept in this directory
	Out   io.Writer // console target, defaults to stderr
}

// Setup replaces the global logger. The returned func closes the log file.
func Setup(opts Options) (func(), error) {
	level := zerolog.WarnLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
		level = parsed
	}

	console := selectOutput(opts.Out)
	writer := console

	mu.Lock()
	defer mu.Unlock()

	consoleOnly := zerolog.New(console).Level(level).With().Timestamp().Logger()
	consoleLogger = &consoleOnly

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, FileName),
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		}
		fileWriter = lj
		// The file always records debug output, the console honours the level
		writer = zerolog.MultiLevelWriter(
			&zerolog.FilteredLevelWriter{Writer: zerolog.LevelWriterAdapter{Writer: console}, Level: level},
			lj,
		)
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()

	return Close, nil
}

// Close closes the diagnostic log file if one is open
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if fileWriter != nil {
		// Later writes must not reopen the file
		if consoleLogger != nil {
			log.Logger = *consoleLogger
		}
		_ = fileWriter.Close()
		fileWriter = nil
	}
}

func selectOutput(out io.Writer) io.Writer {
	if out != nil {
		return out
	}
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}
	return os.Stderr
}
