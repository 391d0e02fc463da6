// Package logx expone un logger de consola mínimo sobre zerolog para todo el
// pipeline. La API por niveles se mantiene compatible con el estilo printf.
package logx

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = newConsoleLogger(os.Stderr)
)

func newConsoleLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()
}

// SetVerbosity mapea la verbosity de CLI a niveles de zerolog:
// 0/1=info, 2=debug, 3+=trace.
func SetVerbosity(v int) {
	switch {
	case v <= 1:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case v == 2:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}
}

// SetOutput redirige la salida del logger (útil en tests).
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	mu.Lock()
	defer mu.Unlock()
	logger = newConsoleLogger(w)
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Errorf(format string, a ...interface{}) { l := current(); l.Error().Msgf(format, a...) }
func Warnf(format string, a ...interface{})  { l := current(); l.Warn().Msgf(format, a...) }
func Infof(format string, a ...interface{})  { l := current(); l.Info().Msgf(format, a...) }
func Debugf(format string, a ...interface{}) { l := current(); l.Debug().Msgf(format, a...) }
func Tracef(format string, a ...interface{}) { l := current(); l.Trace().Msgf(format, a...) }
