package types

// MetricsRecorder is the narrow interface engines push observations
// through. The metrics package implements it with Prometheus collectors;
// Config defaults to a no-op implementation so instrumentation is always
// optional.
type MetricsRecorder interface {
	ObserveCollective(collective, variant string, seconds float64)
	IncQueueFullRetry(collective string)
	IncTransportError(collective string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveCollective(string, string, float64) {}
func (nopMetrics) IncQueueFullRetry(string)                  {}
func (nopMetrics) IncTransportError(string)                  {}

// NopMetrics is the default, zero-cost MetricsRecorder.
var NopMetrics MetricsRecorder = nopMetrics{}

// Config carries the per-process, per-group settings every engine needs:
// its rank and the group size, the default queue and timeout to use when
// the caller doesn't override them, and the logging/metrics handles to
// thread through. It is built once per process with NewConfig and passed
// by value into every engine constructor.
type Config struct {
	Rank          Rank
	Size          int
	DefaultQueue  QueueID
	DefaultTime   Timeout
	Logger        Logger
	Metrics       MetricsRecorder
	DebugBarrier  bool
	ProtocolLabel string
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics overrides the default no-op metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithDefaultQueue sets the queue id used when a call site doesn't specify
// one explicitly.
func WithDefaultQueue(q QueueID) Option {
	return func(c *Config) { c.DefaultQueue = q }
}

// WithDefaultTimeout sets the timeout used when a call site doesn't
// specify one explicitly.
func WithDefaultTimeout(t Timeout) Option {
	return func(c *Config) { c.DefaultTime = t }
}

// WithDebugBarrier enables the ring all-reduce engine's optional
// phase-boundary barrier. Off by default; see the open question in
// SPEC_FULL.md §9 about the non-barrier pacing being sufficient in
// production.
func WithDebugBarrier() Option {
	return func(c *Config) { c.DebugBarrier = true }
}

// WithProtocolLabel stores label in Config.ProtocolLabel. No engine and no
// metrics.Recorder reads that field, so emitted metrics do not carry it.
func WithProtocolLabel(label string) Option {
	return func(c *Config) { c.ProtocolLabel = label }
}

// NewConfig builds a Config for a process that is rank of an n-process
// group, applying any options over sensible defaults.
func NewConfig(rank Rank, n int, opts ...Option) Config {
	c := Config{
		Rank:         rank,
		Size:         n,
		DefaultQueue: 0,
		DefaultTime:  Block,
		Logger:       NopLogger{},
		Metrics:      NopMetrics,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
