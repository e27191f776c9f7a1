package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
	WithField(key string, value interface{}) Logger
}

type NullLogger struct{}

func (NullLogger) Debug(msg string) {}
func (NullLogger) Info(msg string)  {}
func (NullLogger) Warn(msg string)  {}
func (NullLogger) Error(msg string) {}
func (NullLogger) Fatal(msg string) {}
func (NullLogger) WithField(key string, value interface{}) Logger {
	return NullLogger{}
}

func NewNullLogger() Logger {
	return NullLogger{}
}

// New returns a JSON logger writing to w at the given level.
func New(w io.Writer, level zerolog.Level) Logger {
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &ZerologAdapter{logger: &zl}
}

// NewConsole returns a logger that writes human-readable lines to w.
func NewConsole(w io.Writer, level zerolog.Level) Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).Level(level).With().Timestamp().Logger()
	return &ZerologAdapter{logger: &zl}
}

// OpenLogFile opens (truncating) ~/.lambdaforge/lambdaforge.log.
func OpenLogFile() (*os.File, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(homeDir, ".lambdaforge")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return os.OpenFile(filepath.Join(dir, "lambdaforge.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
}

// ZerologAdapter adapts zerolog.Logger to our Logger interface
type ZerologAdapter struct {
	logger *zerolog.Logger
}

func (z *ZerologAdapter) Debug(msg string) { z.logger.Debug().Msg(msg) }
func (z *ZerologAdapter) Info(msg string)  { z.logger.Info().Msg(msg) }
func (z *ZerologAdapter) Warn(msg string)  { z.logger.Warn().Msg(msg) }
func (z *ZerologAdapter) Error(msg string) { z.logger.Error().Msg(msg) }
func (z *ZerologAdapter) Fatal(msg string) { z.logger.Fatal().Msg(msg) }
func (z *ZerologAdapter) WithField(key string, value interface{}) Logger {
	newLogger := z.logger.With().Interface(key, value).Logger()
	return &ZerologAdapter{logger: &newLogger}
}

// Tee fans every message out to all loggers.
type Tee []Logger

func (t Tee) Debug(msg string) {
	for _, l := range t {
		l.Debug(msg)
	}
}

func (t Tee) Info(msg string) {
	for _, l := range t {
		l.Info(msg)
	}
}

func (t Tee) Warn(msg string) {
	for _, l := range t {
		l.Warn(msg)
	}
}

func (t Tee) Error(msg string) {
	for _, l := range t {
		l.Error(msg)
	}
}

// Fatal logs to every logger but the last at error level, then calls Fatal on the last one.
func (t Tee) Fatal(msg string) {
	if len(t) == 0 {
		return
	}
	for _, l := range t[:len(t)-1] {
		l.Error(msg)
	}
	t[len(t)-1].Fatal(msg)
}

func (t Tee) WithField(key string, value interface{}) Logger {
	out := make(Tee, len(t))
	for i, l := range t {
		out[i] = l.WithField(key, value)
	}
	return out
}
