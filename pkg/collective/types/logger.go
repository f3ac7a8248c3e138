package types

// Logger is the structured, levelled logging interface every engine and
// the reference transport log through. The library ships a default
// implementation in the definition package; callers may plug in any
// implementation (e.g. a logrus-backed one) that satisfies this interface.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// NopLogger discards everything. Useful for benchmarks and tests that
// don't want log noise on the hot path.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...interface{}) {}
func (NopLogger) Infof(string, ...interface{})  {}
func (NopLogger) Warnf(string, ...interface{})  {}
func (NopLogger) Errorf(string, ...interface{}) {}
