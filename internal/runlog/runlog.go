// Package runlog keeps one directory per recorded run. A run directory is
// named after its start time so that names sort chronologically:
//
//	.walkthrough/runs/2025-01-15_143052_a1b2c3d4/
//	    events.log
//	    debug.log
package runlog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultRoot is the directory recorded runs are kept under
const DefaultRoot = ".walkthrough"

const (
	ext        = ".log"
	timeLayout = "2006-01-02_150405"
)

// ErrNoRuns is returned when a lookup finds no recorded run
var ErrNoRuns = errors.New("no recorded runs")

// Store is the set of runs under a root directory
type Store struct {
	dir string
}

// Open returns the store rooted at root. Nothing is created until a run is.
func Open(root string) *Store {
	return &Store{dir: filepath.Join(root, "runs")}
}

// Run is a single run directory
type Run struct {
	Name    string    `json:"name"`
	Dir     string    `json:"dir"`
	Started time.Time `json:"started"`
	Logs    []Log     `json:"logs,omitempty"`
}

// Log is one log file of a run
type Log struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Create makes a fresh run directory
func (s *Store) Create() (*Run, error) {
	now := time.Now()
	name := now.Format(timeLayout) + "_" + uuid.NewString()[:8]
	dir := filepath.Join(s.dir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	log.Debug().Str("dir", dir).Msg("run directory created")
	return &Run{Name: name, Dir: dir, Started: now}, nil
}

// Path returns where the log called name lives
func (r *Run) Path(name string) string {
	return filepath.Join(r.Dir, name+ext)
}

// Open creates the log called name, truncating an existing one
func (r *Run) Open(name string) (io.WriteCloser, error) {
	return os.Create(r.Path(name))
}

// List returns the recorded runs, newest first. A missing root is no error.
func (s *Store) List() ([]Run, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Run{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}

	runs := make([]Run, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		run, err := s.load(e.Name())
		if err != nil {
			log.Debug().Err(err).Str("run", e.Name()).Msg("skipping run")
			continue
		}
		runs = append(runs, run)
	}

	slices.SortFunc(runs, func(a, b Run) int { return strings.Compare(b.Name, a.Name) })
	return runs, nil
}

// Latest returns the most recent run
func (s *Store) Latest() (Run, error) {
	runs, err := s.List()
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrNoRuns
	}
	return runs[0], nil
}

// Read returns the content of log name of run
func (s *Store) Read(run, name string) ([]byte, error) {
	if err := checkName(run); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, run, name+ext))
	if err != nil {
		return nil, fmt.Errorf("reading %s log of %s: %w", name, run, err)
	}
	return data, nil
}

// Prune removes all but the newest keep runs and returns the removed names
func (s *Store) Prune(keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must not be negative: %d", keep)
	}
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) <= keep {
		return nil, nil
	}

	var removed []string
	for _, r := range runs[keep:] {
		if err := os.RemoveAll(r.Dir); err != nil {
			return removed, fmt.Errorf("removing %s: %w", r.Name, err)
		}
		removed = append(removed, r.Name)
	}
	return removed, nil
}

func (s *Store) load(name string) (Run, error) {
	dir := filepath.Join(s.dir, name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Run{}, err
	}

	run := Run{Name: name, Dir: dir, Started: started(name, dir)}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		run.Logs = append(run.Logs, Log{Name: strings.TrimSuffix(e.Name(), ext), Size: info.Size()})
	}
	return run, nil
}

// started reads the start time from the directory name, falling back to its
// modification time for directories named by hand
func started(name, dir string) time.Time {
	if len(name) >= len(timeLayout) {
		if t, err := time.ParseInLocation(timeLayout, name[:len(timeLayout)], time.Local); err == nil {
			return t
		}
	}
	if info, err := os.Stat(dir); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid name: %q", name)
	}
	return nil
}
