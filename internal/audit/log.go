package audit

import (
	"github.com/rs/zerolog"
)

// LogSink writes events to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Record implements Sink. Denied and failed actions are logged at warn level.
func (s *LogSink) Record(ev Event) {
	ev = stamp(ev)

	e := s.logger.Info()
	if ev.Outcome != OutcomeSuccess {
		e = s.logger.Warn()
	}

	e = e.Time("occurred_at", ev.Time).
		Str("action", ev.Action).
		Int64("identity", int64(ev.Identity)).
		Str("outcome", string(ev.Outcome))

	if ev.Login != "" {
		e = e.Str("login", ev.Login)
	}

	if ev.Target != "" {
		e = e.Str("target", ev.Target)
	}

	if len(ev.Metadata) > 0 {
		d := zerolog.Dict()
		for k, v := range ev.Metadata {
			d = d.Str(k, v)
		}

		e = e.Dict("metadata", d)
	}

	e.Err(ev.Err).Msg("audit")
}
