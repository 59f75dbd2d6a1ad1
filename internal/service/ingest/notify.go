package ingest

import (
	"log/slog"
	"sync"

	ingestSvc "assetdrop/internal/domain/services/ingest"
)

// logSink forwards notifications to the structured logger.
type logSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that logs every message.
func NewLogSink(logger *slog.Logger) ingestSvc.NotificationSink {
	return &logSink{logger: logger}
}

func (s *logSink) Info(msg string)  { s.logger.Info("notification", "message", msg) }
func (s *logSink) Warn(msg string)  { s.logger.Warn("notification", "message", msg) }
func (s *logSink) Error(msg string) { s.logger.Error("notification", "message", msg) }

// Collector buffers notifications until a client picks them up.
// Safe for concurrent use; uploads report from several goroutines.
type Collector struct {
	mu    sync.Mutex
	items []ingestSvc.Notification
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Info(msg string)  { c.add(ingestSvc.LevelInfo, msg) }
func (c *Collector) Warn(msg string)  { c.add(ingestSvc.LevelWarn, msg) }
func (c *Collector) Error(msg string) { c.add(ingestSvc.LevelError, msg) }

func (c *Collector) add(level ingestSvc.NotificationLevel, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, ingestSvc.Notification{Level: level, Message: msg})
}

// Drain returns the buffered notifications and empties the buffer.
func (c *Collector) Drain() []ingestSvc.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.items
	c.items = nil
	if items == nil {
		items = []ingestSvc.Notification{}
	}
	return items
}

// multiSink fans a message out to several sinks.
type multiSink []ingestSvc.NotificationSink

// MultiSink combines sinks; each message goes to all of them in order.
func MultiSink(sinks ...ingestSvc.NotificationSink) ingestSvc.NotificationSink {
	return multiSink(sinks)
}

func (m multiSink) Info(msg string) {
	for _, s := range m {
		s.Info(msg)
	}
}

func (m multiSink) Warn(msg string) {
	for _, s := range m {
		s.Warn(msg)
	}
}

func (m multiSink) Error(msg string) {
	for _, s := range m {
		s.Error(msg)
	}
}
