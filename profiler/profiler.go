package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nvr-ai/camdetect/logging"
)

// DefaultMaxSamples is the rolling window kept per operation.
const DefaultMaxSamples = 600

// Profiler tracks timing statistics for named operations such as
// "inference" and "decode", and can periodically log a status report.
//
// It is safe for concurrent use: the inference worker records timings while
// the render loop reads snapshots.
type Profiler struct {
	mu         sync.RWMutex
	maxSamples int
	operations map[string]*TimeTracker
	startTime  time.Time
	logger     *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// TimeTracker tracks a rolling window of durations for one operation.
type TimeTracker struct {
	name      string
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	lastTime  time.Duration
	count     int64
}

// OperationStats is a point-in-time copy of a TimeTracker.
type OperationStats struct {
	Name string `json:"name"`
	// Count is the number of samples ever recorded.
	Count   int64         `json:"count"`
	Average time.Duration `json:"average"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Last    time.Duration `json:"last"`
}

// Options configures a Profiler.
type Options struct {
	// MaxSamples is the rolling window size per operation (default: 600).
	MaxSamples int
	// Logger receives status reports. Defaults to a no-op logger.
	Logger *zap.SugaredLogger
}

// New creates a profiler.
//
// Arguments:
//   - opts: Configuration options for the profiler.
//
// Returns:
//   - *Profiler: A ready to use profiler.
func New(opts Options) *Profiler {
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = DefaultMaxSamples
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Profiler{
		maxSamples: opts.MaxSamples,
		operations: make(map[string]*TimeTracker),
		startTime:  time.Now(),
		logger:     opts.Logger,
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func(): Call when the operation completes.
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.Record(name, time.Since(start))
	}
}

// Record adds one duration sample for name.
func (p *Profiler) Record(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operations[name]
	if !exists {
		tracker = &TimeTracker{
			name:      name,
			durations: make([]time.Duration, 0, p.maxSamples),
			minTime:   d,
			maxTime:   d,
		}
		p.operations[name] = tracker
	}

	tracker.durations = append(tracker.durations, d)
	if len(tracker.durations) > p.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += d
	tracker.lastTime = d
	tracker.count++

	if d < tracker.minTime {
		tracker.minTime = d
	}
	if d > tracker.maxTime {
		tracker.maxTime = d
	}
}

// Snapshot returns the statistics for name, or false if nothing was recorded.
func (p *Profiler) Snapshot(name string) (OperationStats, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tracker, ok := p.operations[name]
	if !ok {
		return OperationStats{}, false
	}
	return tracker.stats(), true
}

// Snapshots returns statistics for every operation, sorted by name.
func (p *Profiler) Snapshots() []OperationStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]OperationStats, 0, len(p.operations))
	for _, tracker := range p.operations {
		out = append(out, tracker.stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *TimeTracker) stats() OperationStats {
	s := OperationStats{
		Name:  t.name,
		Count: t.count,
		Min:   t.minTime,
		Max:   t.maxTime,
		Last:  t.lastTime,
	}
	if len(t.durations) > 0 {
		s.Average = t.totalTime / time.Duration(len(t.durations))
	}
	return s
}

// Start emits a status report every interval until ctx is cancelled or Stop
// is called. Calling Start on a running profiler is a no-op.
func (p *Profiler) Start(ctx context.Context, interval time.Duration) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Report()
			}
		}
	}()
}

// Stop halts periodic reporting and waits for the reporter to exit.
func (p *Profiler) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

// Report logs uptime, memory usage and every operation's timings.
func (p *Profiler) Report() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.logger.Infow("profiler status",
		"uptime", time.Since(p.startTime).Truncate(time.Millisecond),
		"goroutines", runtime.NumGoroutine(),
		"heap_alloc", formatBytes(mem.HeapAlloc),
		"sys", formatBytes(mem.Sys),
		"gc_cycles", mem.NumGC,
	)
	for _, s := range p.Snapshots() {
		p.logger.Infow("operation timing",
			"operation", s.Name,
			"avg", s.Average.Truncate(time.Microsecond),
			"min", s.Min.Truncate(time.Microsecond),
			"max", s.Max.Truncate(time.Microsecond),
			"count", s.Count,
		)
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
