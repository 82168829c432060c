package agent

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vdavid/inbox-agent/internal/models"
)

// LogSink receives each log entry as it is recorded. Used by the HTTP layer
// to stream run progress over WebSocket; may be nil.
type LogSink func(models.LogEntry)

// logCollector is a logrus hook that accumulates every entry into the
// run-scoped ordered log. No ambient logger state crosses run boundaries -
// each run builds its own logger and collector.
type logCollector struct {
	mu      sync.Mutex
	entries []models.LogEntry
	sink    LogSink
}

// Levels implements logrus.Hook.
func (c *logCollector) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook. Entries are appended in call order, which is
// the chronological order the report must preserve.
func (c *logCollector) Fire(entry *logrus.Entry) error {
	converted := models.LogEntry{
		Time:    entry.Time,
		Level:   levelName(entry.Level),
		Message: entry.Message,
	}
	if len(entry.Data) > 0 {
		converted.Fields = make(map[string]any, len(entry.Data))
		for k, v := range entry.Data {
			converted.Fields[k] = v
		}
	}

	// The sink runs under the same lock so its callers never need their own
	// synchronization, even when actions log concurrently.
	c.mu.Lock()
	c.entries = append(c.entries, converted)
	if c.sink != nil {
		c.sink(converted)
	}
	c.mu.Unlock()

	return nil
}

// Entries returns the collected log in chronological order.
func (c *logCollector) Entries() []models.LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.LogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

func levelName(level logrus.Level) string {
	switch {
	case level <= logrus.ErrorLevel:
		return "error"
	case level == logrus.WarnLevel:
		return "warn"
	default:
		return "info"
	}
}

// newRunLogger builds the run-scoped logger. Output goes to the collector
// (and optional sink) only; nothing is written to process streams, keeping
// concurrent runs from interleaving.
func newRunLogger(sink LogSink) (*logrus.Logger, *logCollector) {
	collector := &logCollector{sink: sink}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.InfoLevel)
	logger.AddHook(collector)

	return logger, collector
}
