package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Logger interface {
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Fatalf(format string, v ...interface{})
	WithModule(module string) Logger
	WithFields(fields map[string]interface{}) Logger
}

func NewLogger(level string) Logger {
	zl := zerolog.New(os.Stderr).
		Level(parseLevel(level)).
		With().Timestamp().Logger()
	return &zeroLogger{zl: zl}
}

type zeroLogger struct {
	zl zerolog.Logger
}

func parseLevel(l string) zerolog.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *zeroLogger) Infof(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

func (l *zeroLogger) Warnf(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

func (l *zeroLogger) Errorf(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

func (l *zeroLogger) Fatalf(format string, v ...interface{}) {
	l.zl.Fatal().Msgf(format, v...)
}

func (l *zeroLogger) WithModule(module string) Logger {
	return &zeroLogger{zl: l.zl.With().Str("module", module).Logger()}
}

func (l *zeroLogger) WithFields(fields map[string]interface{}) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(fields).Logger()}
}
