package memory

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-cache/internal/logging"
	"media-cache/internal/metrics"
)

// Config holds memory monitor configuration.
type Config struct {
	// MemoryLimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	MemoryLimitBytes int64

	// HighWaterMark is the usage fraction at which to start throttling (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the usage fraction at which pressure handlers fire (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often to sample memory usage
	CheckInterval time.Duration
}

// DefaultConfig returns sensible defaults for memory monitoring.
func DefaultConfig() Config {
	return Config{
		MemoryLimitBytes:  0, // Use GOMEMLIMIT if set
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and fires pressure handlers when usage crosses
// the critical watermark. Handlers fire once per pressure episode: the
// monitor re-arms only after usage drops back below the high watermark.
type Monitor struct {
	config   Config
	limit    int64
	stopChan chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	current    uint64
	inPressure bool
	handlers   []func()
}

// NewMonitor creates a memory monitor. With no explicit limit the effective
// GOMEMLIMIT is used; with neither, monitoring is disabled.
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes

	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			logging.Info("memory monitor using GOMEMLIMIT: %d bytes (%.1f MB)", limit, float64(limit)/(1024*1024))
		}
	}

	if limit == 0 {
		logging.Warn("memory monitor: no memory limit configured, pressure handling disabled")
	}

	return &Monitor{
		config:   config,
		limit:    limit,
		stopChan: make(chan struct{}),
	}
}

// OnPressure registers a handler invoked when usage crosses the critical
// watermark. Register before Start.
func (m *Monitor) OnPressure(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
}

// Start begins the sampling loop.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.monitorLoop()
}

// Stop stops the monitor.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckNow()
		case <-m.stopChan:
			return
		}
	}
}

// CheckNow samples memory usage once and fires handlers if the critical
// watermark was crossed. Exposed for the sampling loop and tests.
func (m *Monitor) CheckNow() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	var fire []func()

	m.mu.Lock()
	m.current = stats.Alloc

	if m.limit > 0 {
		usage := float64(stats.Alloc) / float64(m.limit)
		metrics.MemoryUsageRatio.Set(usage)

		if usage >= m.config.CriticalWaterMark {
			if !m.inPressure {
				logging.Warn("memory critical (%.1f%% of limit), firing pressure handlers", usage*100)
				m.inPressure = true
				fire = append(fire, m.handlers...)
			}
		} else if usage < m.config.HighWaterMark {
			if m.inPressure {
				logging.Info("memory recovered (%.1f%% of limit)", usage*100)
				m.inPressure = false
			}
		}
	}
	m.mu.Unlock()

	if len(fire) > 0 {
		for _, fn := range fire {
			fn()
		}
		// Return freed cache memory to the runtime promptly.
		go runtime.GC()
	}
}

// ShouldThrottle reports whether usage is above the high watermark. The
// thumbnail generation path rejects new work while throttled.
func (m *Monitor) ShouldThrottle() bool {
	if m.limit == 0 {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return float64(m.current) >= float64(m.limit)*m.config.HighWaterMark
}

// InPressure reports whether the monitor is inside a pressure episode.
func (m *Monitor) InPressure() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inPressure
}

// Usage returns current usage as a fraction of the limit (0 when no limit
// is configured).
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return float64(m.current) / float64(m.limit)
}

// Stats returns the current allocation, the configured limit, and the usage
// ratio.
func (m *Monitor) Stats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var currentInt64 int64
	if m.current > math.MaxInt64 {
		currentInt64 = math.MaxInt64
	} else {
		currentInt64 = int64(m.current)
	}

	var usageRatio float64
	if m.limit > 0 {
		usageRatio = float64(m.current) / float64(m.limit)
	}

	return currentInt64, m.limit, usageRatio
}
