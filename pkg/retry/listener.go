package retry

import (
	"github.com/rs/zerolog"
)

// Listener observes retry episodes. Open runs in registration order before
// the first attempt and may veto the episode; OnError and Close run in
// reverse registration order, OnError after every failed attempt before the
// backoff pause and Close exactly once per episode.
type Listener interface {
	// Open is called before the first attempt. Returning false aborts the
	// episode with ErrTerminatedByListener before any attempt runs.
	Open(rc Context, label string) bool

	// OnError is called after every failed attempt, before backoff
	OnError(rc Context, err error)

	// Close is called once when the episode ends; err is the final error,
	// nil on success
	Close(rc Context, err error)
}

// LoggingListener logs episode lifecycle events through zerolog
type LoggingListener struct {
	logger zerolog.Logger
}

// NewLoggingListener creates a listener logging to the given logger
func NewLoggingListener(logger zerolog.Logger) *LoggingListener {
	return &LoggingListener{logger: logger}
}

// Open logs the episode start and never vetoes
func (l *LoggingListener) Open(rc Context, label string) bool {
	l.logger.Debug().
		Str("label", label).
		Msg("retry episode open")
	return true
}

// OnError logs a failed attempt
func (l *LoggingListener) OnError(rc Context, err error) {
	l.logger.Warn().
		Int("retry_count", rc.RetryCount()).
		Err(err).
		Msg("retry attempt failed")
}

// Close logs the episode outcome
func (l *LoggingListener) Close(rc Context, err error) {
	if err != nil {
		l.logger.Error().
			Int("retry_count", rc.RetryCount()).
			Err(err).
			Msg("retry episode failed")
		return
	}
	l.logger.Debug().
		Int("retry_count", rc.RetryCount()).
		Msg("retry episode closed")
}
