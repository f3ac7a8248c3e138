package definition

import "github.com/sirupsen/logrus"

// LogrusLogger adapts a *logrus.Logger (or entry) to types.Logger, for
// callers who already standardised on logrus elsewhere in their process
// and want collective engines to log through the same pipeline.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps l, tagging every line with component=collective.
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: l.WithField("component", "collective")}
}

func (l *LogrusLogger) Debugf(format string, v ...interface{}) { l.entry.Debugf(format, v...) }
func (l *LogrusLogger) Infof(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *LogrusLogger) Warnf(format string, v ...interface{})  { l.entry.Warnf(format, v...) }
func (l *LogrusLogger) Errorf(format string, v ...interface{}) { l.entry.Errorf(format, v...) }
