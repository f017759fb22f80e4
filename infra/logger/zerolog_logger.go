package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	outMu  sync.RWMutex
	out    io.Writer = os.Stdout
	format string
)

// Configure sets the global level ("debug", "info", ...) and the output
// format ("json" or "console") used by loggers created afterwards. An empty
// format keeps the APP_ENV detection.
func Configure(level, outputFormat string) error {
	if level != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("log level %q: %w", level, err)
		}
		zerolog.SetGlobalLevel(lvl)
	}
	switch outputFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", outputFormat)
	}
	outMu.Lock()
	format = outputFormat
	outMu.Unlock()
	return nil
}

// SetOutput redirects loggers created afterwards to w.
func SetOutput(w io.Writer) {
	outMu.Lock()
	out = w
	outMu.Unlock()
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger tagged with the component field.
// APP_ENV=dev selects the console writer unless Configure chose a format.
func NewZerologLogger(component string) Logger {
	outMu.RLock()
	w, f := out, format
	outMu.RUnlock()
	if f == "" && strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		f = "console"
	}
	if f == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
