package metrics

import (
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Apply results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Route operations.
const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// RecordApply records a profile application.
func (m *Metrics) RecordApply(success bool) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	m.ProfileApplies.WithLabelValues(result).Inc()
}

// RecordRouteAdded records a host route added.
func (m *Metrics) RecordRouteAdded() {
	if m == nil {
		return
	}
	m.RoutesAdded.Inc()
}

// RecordRouteRemoved records a host route removed.
func (m *Metrics) RecordRouteRemoved() {
	if m == nil {
		return
	}
	m.RoutesRemoved.Inc()
}

// RecordRouteError records a failed route operation.
func (m *Metrics) RecordRouteError(op string) {
	if m == nil {
		return
	}
	m.RouteErrors.WithLabelValues(op).Inc()
}

// RecordResolveFailures records n patterns that did not resolve.
func (m *Metrics) RecordResolveFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ResolveFailures.Add(float64(n))
}

// RecordPACWrite records a PAC file written.
func (m *Metrics) RecordPACWrite() {
	if m == nil {
		return
	}
	m.PACWrites.Inc()
	m.PACPresent.Set(1)
}

// RecordPACRemoval records a PAC file removed.
func (m *Metrics) RecordPACRemoval() {
	if m == nil {
		return
	}
	m.PACRemovals.Inc()
	m.PACPresent.Set(0)
}

// RecordRequest records a control API request.
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Collector updates process gauges periodically while the service runs.
type Collector struct {
	metrics   *Metrics
	startTime time.Time
	interval  time.Duration
	ticker    *time.Ticker
	done      chan struct{}
	mu        sync.Mutex
	running   bool
}

// DefaultCollectionInterval is used when no interval is configured.
const DefaultCollectionInterval = 15 * time.Second

// NewCollector creates a collector sampling every DefaultCollectionInterval.
func NewCollector(metrics *Metrics) *Collector {
	return NewCollectorWithInterval(metrics, DefaultCollectionInterval)
}

// NewCollectorWithInterval creates a collector sampling every interval. A
// non-positive interval selects the default.
func NewCollectorWithInterval(metrics *Metrics, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectionInterval
	}
	return &Collector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
	}
}

// Start starts the metrics collector.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || c.metrics == nil {
		return
	}

	c.running = true
	c.done = make(chan struct{})
	c.ticker = time.NewTicker(c.interval)

	go c.collectLoop(c.ticker, c.done)
}

// Stop stops the metrics collector.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	close(c.done)
	c.ticker.Stop()
	c.running = false
}

func (c *Collector) collectLoop(ticker *time.Ticker, done chan struct{}) {
	c.collect()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *Collector) collect() {
	c.metrics.Uptime.Set(time.Since(c.startTime).Seconds())
	c.metrics.GoRoutines.Set(float64(runtime.NumGoroutine()))
}
