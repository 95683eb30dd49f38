// Package cleanup removes stale intermediate files that interrupted runs
// leave behind next to the recordings.
package cleanup

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"

	"github.com/wordcut/wordcut/internal/pipeline"
	"github.com/wordcut/wordcut/pkg/log"
)

// Sweeper scans the watched directories for leftover pipeline intermediates
// and removes the ones older than MaxAge. Runs never touch recordings or
// rendered outputs, only the temp suffixes the pipeline itself writes.
type Sweeper struct {
	dirs   []string
	maxAge time.Duration
}

func NewSweeper(dirs []string, maxAge time.Duration) *Sweeper {
	return &Sweeper{dirs: dirs, maxAge: maxAge}
}

// Schedule registers the sweep on the given cron.
func (s *Sweeper) Schedule(c *cron.Cron, cronExpr string) error {
	_, err := c.AddFunc(cronExpr, func() {
		s.Sweep()
	})
	return err
}

// Sweep performs one pass over all directories and returns how many files
// were removed.
func (s *Sweeper) Sweep() int {
	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	var freed uint64

	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Warn("Sweep skipping %s: %v", dir, err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !isTempFile(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Warn("Sweep could not remove %s: %v", path, err)
				continue
			}
			removed++
			freed += uint64(info.Size())
		}
	}

	if removed > 0 {
		log.Info("Sweep removed %d stale temp files (%s)", removed, humanize.Bytes(freed))
	}
	return removed
}

func isTempFile(name string) bool {
	for _, suffix := range pipeline.TempSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
