// Package middleware holds small cross-cutting adapters shared by the
// connection hub's processes: HTTP instrumentation for the health-check
// server and structured per-command logging helpers.
package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogMiddleware is an HTTP middleware that logs incoming requests using Logrus.
// Logs the method, path, and duration of each request.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			method := r.Method

			next.ServeHTTP(w, r)

			duration := time.Since(start)
			logger.WithFields(logrus.Fields{
				"method":   method,
				"path":     path,
				"duration": duration,
				"remote":   r.RemoteAddr,
			}).Info("HTTP Request")
		})
	}
}

// CommandLogger returns a logger entry pre-populated with the fields every
// command-processor log line carries: operation id plus whatever entity
// identifiers the caller passes in.
func CommandLogger(logger *logrus.Logger, operationID string, fields logrus.Fields) *logrus.Entry {
	merged := logrus.Fields{"operation_id": operationID}
	for k, v := range fields {
		merged[k] = v
	}
	return logger.WithFields(merged)
}

// LogStaleFire logs a task executor's no-op on a stale or racing task at
// warn level, since it denotes expected-but-noteworthy behavior rather
// than a bug. logger is a logrus.FieldLogger so a command's or executor's
// already-scoped *logrus.Entry can be passed straight through.
func LogStaleFire(logger logrus.FieldLogger, taskID string, reason string) {
	logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"reason":  reason,
	}).Warn("stale task fire, no-op")
}

// LogTransportFailure logs a transport-level failure (KV, bus, realtime,
// scheduler) at error level: a command's post-commit fan-out failure, or
// a task dropped after its retries are exhausted. logger is
// a logrus.FieldLogger so a command's or executor's already-scoped
// *logrus.Entry can be passed straight through.
func LogTransportFailure(logger logrus.FieldLogger, component string, err error) {
	logger.WithFields(logrus.Fields{
		"component": component,
		"error":     err,
	}).Error("transport failure")
}
