package core

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	timingDurationMetric = "vcagent.timing.duration_ms"
	timingCallsMetric    = "vcagent.timing.calls"
)

type MethodStats struct {
	Label string
	Calls int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (s MethodStats) Average() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Calls)
}

// Collector aggregates timing samples per label. Samples are optionally
// appended to a log file and forwarded to a MetricsRecorder.
type Collector struct {
	mu      sync.Mutex
	stats   map[string]*MethodStats
	logPath string
	metrics MetricsRecorder
	logger  Logger
	now     func() time.Time
}

type CollectorOption func(*Collector)

func WithTimingLog(path string) CollectorOption {
	return func(c *Collector) {
		c.logPath = strings.TrimSpace(path)
	}
}

func WithCollectorMetrics(recorder MetricsRecorder) CollectorOption {
	return func(c *Collector) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

func WithCollectorLogger(logger Logger) CollectorOption {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		stats:   map[string]*MethodStats{},
		metrics: NopMetricsRecorder{},
		logger:  glog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// NewCollectorFromSettings reads timing.log.file; options given after it
// still apply.
func NewCollectorFromSettings(settings Settings, opts ...CollectorOption) (*Collector, error) {
	path, err := settings.GetString(SettingTimingLogFile, "")
	if err != nil {
		return nil, err
	}
	return NewCollector(append([]CollectorOption{WithTimingLog(path)}, opts...)...), nil
}

func (c *Collector) Record(ctx context.Context, label string, elapsed time.Duration) {
	if c == nil {
		return
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	c.mu.Lock()
	entry, ok := c.stats[label]
	if !ok {
		entry = &MethodStats{Label: label, Min: elapsed, Max: elapsed}
		c.stats[label] = entry
	}
	entry.Calls++
	entry.Total += elapsed
	if elapsed < entry.Min {
		entry.Min = elapsed
	}
	if elapsed > entry.Max {
		entry.Max = elapsed
	}
	c.mu.Unlock()

	// One O_APPEND write per sample keeps lines whole without holding c.mu.
	if c.logPath != "" {
		if err := c.appendLog(label, elapsed); err != nil {
			c.logger.Warn("timing log append failed", "path", c.logPath, "error", err)
		}
	}

	tags := map[string]string{"method": label}
	c.metrics.ObserveHistogram(ctx, timingDurationMetric, float64(elapsed)/float64(time.Millisecond), cloneTags(tags))
	c.metrics.IncCounter(ctx, timingCallsMetric, 1, cloneTags(tags))
}

func (c *Collector) appendLog(label string, elapsed time.Duration) error {
	file, err := os.OpenFile(c.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, writeErr := fmt.Fprintf(file, "%s %s %.3f\n",
		c.now().UTC().Format(time.RFC3339Nano),
		label,
		float64(elapsed)/float64(time.Millisecond),
	)
	closeErr := file.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

func (c *Collector) Stats(label string) (MethodStats, bool) {
	if c == nil {
		return MethodStats{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.stats[strings.TrimSpace(label)]
	if !ok {
		return MethodStats{}, false
	}
	return *entry, true
}

func (c *Collector) Count(label string) int64 {
	stats, _ := c.Stats(label)
	return stats.Calls
}

// Snapshot returns every label ordered by name.
func (c *Collector) Snapshot() []MethodStats {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	out := make([]MethodStats, 0, len(c.stats))
	for _, entry := range c.stats {
		out = append(out, *entry)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Label < out[j].Label
	})
	return out
}

func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stats = map[string]*MethodStats{}
	c.mu.Unlock()
}
