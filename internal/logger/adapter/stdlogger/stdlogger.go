// Package stdlogger bridges libraries that log through the standard library logger onto zerolog.
package stdlogger

import (
	stdlog "log"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Adapter logs printf style messages to the global zerolog logger.
type Adapter struct {
	component string
}

// New returns an Adapter. The optional component is added as a field to every message.
func New(component ...string) *Adapter {
	a := &Adapter{}
	if len(component) > 0 {
		a.component = component[0]
	}

	return a
}

func (a *Adapter) event(level zerolog.Level) *zerolog.Event {
	e := log.WithLevel(level)
	if a.component != "" {
		e = e.Str("component", a.component)
	}

	return e
}

// Debugf logs at debug level.
func (a *Adapter) Debugf(format string, args ...any) {
	a.event(zerolog.DebugLevel).Msgf(format, args...)
}

// Infof logs at info level.
func (a *Adapter) Infof(format string, args ...any) {
	a.event(zerolog.InfoLevel).Msgf(format, args...)
}

// Warningf logs at warn level.
func (a *Adapter) Warningf(format string, args ...any) {
	a.event(zerolog.WarnLevel).Msgf(format, args...)
}

// Errorf logs at error level.
func (a *Adapter) Errorf(format string, args ...any) {
	a.event(zerolog.ErrorLevel).Msgf(format, args...)
}

// Write implements io.Writer so the adapter can back a standard library logger.
// Every line is logged at debug level.
func (a *Adapter) Write(p []byte) (int, error) {
	a.event(zerolog.DebugLevel).Msg(strings.TrimRight(string(p), "\n"))

	return len(p), nil
}

// StdLogger returns a standard library logger writing through the adapter.
func (a *Adapter) StdLogger() *stdlog.Logger {
	return stdlog.New(a, "", 0)
}
