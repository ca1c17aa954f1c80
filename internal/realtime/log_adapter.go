package realtime

import "github.com/sirupsen/logrus"

// retryableLogAdapter satisfies retryablehttp.LeveledLogger over a
// logrus.Logger, the way the rest of the hub routes every library's
// logging through the one structured logger.
type retryableLogAdapter struct {
	log *logrus.Logger
}

func newRetryableLogAdapter(log *logrus.Logger) *retryableLogAdapter {
	return &retryableLogAdapter{log: log}
}

func (a *retryableLogAdapter) fields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}

func (a *retryableLogAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.log.WithFields(a.fields(keysAndValues)).Error(msg)
}

func (a *retryableLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.log.WithFields(a.fields(keysAndValues)).Debug(msg)
}

func (a *retryableLogAdapter) Debug(msg string, keysAndValues ...interface{}) {
	a.log.WithFields(a.fields(keysAndValues)).Debug(msg)
}

func (a *retryableLogAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.log.WithFields(a.fields(keysAndValues)).Warn(msg)
}
