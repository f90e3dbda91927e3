// Package progress counts per-item outcomes of a run and logs periodic snapshots.
package progress

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Outcome classifies a finished item.
type Outcome int

const (
	// Updated means a price row with samples was written.
	Updated Outcome = iota
	// Empty means a row was written but no samples were found.
	Empty
	// Missed means the item failed and nothing final was written.
	Missed
	// TimedOut is a miss caused by the per-item deadline.
	TimedOut
)

// Snapshot is a point-in-time view of a tracker.
type Snapshot struct {
	Total     int
	Processed int
	Updated   int
	Empty     int
	Missing   int
	Timeouts  int
	Elapsed   time.Duration
	ETA       time.Duration
}

// Percent returns completion in the range 0..100.
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Processed) / float64(s.Total) * 100
}

// Tracker is safe for concurrent use.
type Tracker struct {
	logger    logrus.FieldLogger
	message   string
	total     int
	startTime time.Time
	now       func() time.Time

	processed atomic.Int64
	updated   atomic.Int64
	empty     atomic.Int64
	missing   atomic.Int64
	timeouts  atomic.Int64

	sometimes rate.Sometimes
}

// NewTracker creates a tracker for total items. A snapshot is logged at most
// once per every; every <= 0 logs after each item.
func NewTracker(logger logrus.FieldLogger, message string, total int, every time.Duration) *Tracker {
	t := &Tracker{
		logger:    logger,
		message:   message,
		total:     total,
		startTime: time.Now(),
		now:       time.Now,
	}
	if every > 0 {
		t.sometimes.Interval = every
	} else {
		t.sometimes.Every = 1
	}
	return t
}

// Record counts one finished item and may log a progress snapshot.
func (t *Tracker) Record(o Outcome) {
	t.processed.Add(1)
	switch o {
	case Updated:
		t.updated.Add(1)
	case Empty:
		t.updated.Add(1)
		t.empty.Add(1)
	case Missed:
		t.missing.Add(1)
	case TimedOut:
		t.missing.Add(1)
		t.timeouts.Add(1)
	}

	t.sometimes.Do(func() {
		s := t.Snapshot()
		t.logger.WithFields(fields(s)).Infof("%s [%s] %d/%d (%.1f%%) ETA: %s",
			t.message, createProgressBar(s.Percent()), s.Processed, s.Total, s.Percent(), formatDuration(s.ETA))
	})
}

// Snapshot returns the current counters with an ETA based on throughput so far.
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		Total:     t.total,
		Processed: int(t.processed.Load()),
		Updated:   int(t.updated.Load()),
		Empty:     int(t.empty.Load()),
		Missing:   int(t.missing.Load()),
		Timeouts:  int(t.timeouts.Load()),
		Elapsed:   t.now().Sub(t.startTime),
	}
	if s.Processed > 0 && s.Total > s.Processed && s.Elapsed > 0 {
		perItem := s.Elapsed / time.Duration(s.Processed)
		s.ETA = perItem * time.Duration(s.Total-s.Processed)
	}
	return s
}

// Finish logs the end-of-game summary and returns the final snapshot.
func (t *Tracker) Finish() Snapshot {
	s := t.Snapshot()
	t.logger.WithFields(fields(s)).Infof("%s ✓ Completed %d/%d items in %s (updated %d, missing %d)",
		t.message, s.Processed, s.Total, formatDuration(s.Elapsed), s.Updated, s.Missing)
	return s
}

func fields(s Snapshot) logrus.Fields {
	return logrus.Fields{
		"processed": s.Processed,
		"total":     s.Total,
		"updated":   s.Updated,
		"empty":     s.Empty,
		"missing":   s.Missing,
		"timeouts":  s.Timeouts,
	}
}

// createProgressBar creates a visual progress bar
func createProgressBar(percentage float64) string {
	const width = 30
	filled := int(percentage / 100.0 * width)

	var bar strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && percentage < 100 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return bar.String()
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
