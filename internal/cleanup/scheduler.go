// Package cleanup removes stale intermediate artifacts from the temp directory.
package cleanup

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler periodically deletes temp files older than maxAge
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	logger   zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, interval, maxAge time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		tempDir:  tempDir,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger.With().Str("component", "cleanup").Logger(),
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start runs one sweep immediately and then one per interval
func (s *Scheduler) Start() {
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				return
			}
		}
	}()

	s.logger.Info().Dur("interval", s.interval).Dur("max_age", s.maxAge).Msg("cleanup scheduler started")
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.logger.Info().Msg("cleanup scheduler stopped")
	})
}

// Sweep removes files older than maxAge and then any empty directories that
// were last modified before maxAge. A directory's age is taken before its
// files are removed, so a fresh empty upload directory survives. It returns
// the number of files deleted.
func (s *Scheduler) Sweep() int {
	now := s.now()

	var (
		deletedCount int
		deletedSize  int64
		dirs         []string
		dirModTimes  = make(map[string]time.Time)
	)

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != s.tempDir {
				dirs = append(dirs, path)
				dirModTimes[path] = info.ModTime()
			}
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("file", path).Msg("failed to delete stale file")
			return nil
		}
		deletedCount++
		deletedSize += info.Size()
		s.logger.Debug().Str("file", path).Dur("age", age.Round(time.Minute)).Int64("size", info.Size()).Msg("deleted stale file")
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("cleanup walk failed")
	}

	// deepest first so parents empty out after their children
	for i := len(dirs) - 1; i >= 0; i-- {
		if now.Sub(dirModTimes[dirs[i]]) <= s.maxAge {
			continue
		}
		os.Remove(dirs[i])
	}

	if deletedCount > 0 {
		s.logger.Info().Int("files", deletedCount).Float64("freed_mb", float64(deletedSize)/(1024*1024)).Msg("cleanup complete")
	}
	return deletedCount
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string) error {
	return os.MkdirAll(tempDir, 0755)
}
