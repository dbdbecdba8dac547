package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Logger adapts slog to cron.Logger. Cron's routine chatter goes to
// debug level.
type Logger struct {
	log *slog.Logger
}

var _ cron.Logger = Logger{}

// NewLogger wraps l.
func NewLogger(l *slog.Logger) Logger {
	return Logger{log: l}
}

func (l Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l Logger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]any{slog.Any("error", err)}, keysAndValues...)
	l.log.Error("cron: "+msg, args...)
}
