// Package logtest provides loggers for tests.
package logtest

import (
	"testing"

	"go.uber.org/zap/zaptest"

	logsvc "github.com/arkofgod/ark/services/logger"
)

// NewLogger returns a logger writing to t, never reporting to Rollbar.
func NewLogger(t testing.TB) *logsvc.RollbarLogger {
	return logsvc.NewDisabledLogger(zaptest.NewLogger(t))
}
