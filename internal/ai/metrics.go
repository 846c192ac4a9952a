package ai

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ModelMetrics is a snapshot of one adapter's call statistics.
type ModelMetrics struct {
	Model        string        `json:"model"`
	TotalCalls   int64         `json:"total_calls"`
	SuccessCalls int64         `json:"success_calls"`
	FailedCalls  int64         `json:"failed_calls"`
	SuccessRate  float64       `json:"success_rate"`
	MinLatency   time.Duration `json:"min_latency"`
	AvgLatency   time.Duration `json:"avg_latency"`
	MaxLatency   time.Duration `json:"max_latency"`
	TotalTokens  int64         `json:"total_tokens"`
	LastError    string        `json:"last_error,omitempty"`
	LastCallAt   time.Time     `json:"last_call_at,omitempty"`
}

type metricsTracker struct {
	mu           sync.Mutex
	model        string
	total        int64
	success      int64
	failed       int64
	totalLatency time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	tokens       int64
	lastError    string
	lastCallAt   time.Time
}

func (m *metricsTracker) record(latency time.Duration, tokens int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if err != nil {
		m.failed++
		m.lastError = err.Error()
	} else {
		m.success++
	}
	m.totalLatency += latency
	if m.minLatency == 0 || latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	m.tokens += int64(tokens)
	m.lastCallAt = time.Now()
}

func (m *metricsTracker) snapshot() ModelMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := ModelMetrics{
		Model:        m.model,
		TotalCalls:   m.total,
		SuccessCalls: m.success,
		FailedCalls:  m.failed,
		MinLatency:   m.minLatency,
		MaxLatency:   m.maxLatency,
		TotalTokens:  m.tokens,
		LastError:    m.lastError,
		LastCallAt:   m.lastCallAt,
	}
	if m.total > 0 {
		s.SuccessRate = float64(m.success) / float64(m.total)
		s.AvgLatency = m.totalLatency / time.Duration(m.total)
	}
	return s
}

func (m *metricsTracker) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	model := m.model
	*m = metricsTracker{model: model}
}

// Recorder exports AI and tool activity as Prometheus collectors.
type Recorder struct {
	calls        *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	toolRuns     *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiplanner",
			Subsystem: "ai",
			Name:      "calls_total",
			Help:      "Model adapter calls by model, method and outcome.",
		}, []string{"model", "method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aiplanner",
			Subsystem: "ai",
			Name:      "call_duration_seconds",
			Help:      "Model adapter call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"model", "method"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiplanner",
			Subsystem: "ai",
			Name:      "tokens_total",
			Help:      "Tokens consumed per model.",
		}, []string{"model"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiplanner",
			Subsystem: "ai",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result.",
		}, []string{"result"}),
		toolRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiplanner",
			Subsystem: "tool",
			Name:      "executions_total",
			Help:      "Tool executions by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aiplanner",
			Subsystem: "tool",
			Name:      "execution_duration_seconds",
			Help:      "Tool execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	if reg != nil {
		reg.MustRegister(r.calls, r.duration, r.tokens, r.cacheLookups, r.toolRuns, r.toolDuration)
	}
	return r
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveCall records one adapter call.
func (r *Recorder) ObserveCall(model, method string, latency time.Duration, tokens int, err error) {
	if r == nil {
		return
	}
	r.calls.WithLabelValues(model, method, outcome(err)).Inc()
	r.duration.WithLabelValues(model, method).Observe(latency.Seconds())
	if tokens > 0 {
		r.tokens.WithLabelValues(model).Add(float64(tokens))
	}
}

// ObserveCache records a cache lookup.
func (r *Recorder) ObserveCache(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveTool records one tool execution.
func (r *Recorder) ObserveTool(tool string, latency time.Duration, err error) {
	if r == nil {
		return
	}
	r.toolRuns.WithLabelValues(tool, outcome(err)).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(latency.Seconds())
}
