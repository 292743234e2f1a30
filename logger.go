package wsstream

import (
	"log/slog"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
)

// Logger is the interface for structured logging.
// It is designed to be compatible with *slog.Logger from the standard library.
// Applications can provide their own implementation or use the default slog logger.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// defaultLogger returns the default slog logger from the standard library.
func defaultLogger() Logger {
	return slog.Default()
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// ZapLogger adapts a zap logger. Key-value pairs become zap fields.
func ZapLogger(l *zap.Logger) Logger {
	return zapLogger{s: l.Sugar()}
}

func (l zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }

type zerologLogger struct {
	l zerolog.Logger
}

// ZerologLogger adapts a zerolog logger. Key-value pairs must alternate
// string keys and values.
func ZerologLogger(l zerolog.Logger) Logger {
	return zerologLogger{l: l}
}

func (l zerologLogger) Debug(msg string, args ...any) { l.l.Debug().Fields(args).Msg(msg) }
func (l zerologLogger) Info(msg string, args ...any)  { l.l.Info().Fields(args).Msg(msg) }
func (l zerologLogger) Warn(msg string, args ...any)  { l.l.Warn().Fields(args).Msg(msg) }
func (l zerologLogger) Error(msg string, args ...any) { l.l.Error().Fields(args).Msg(msg) }
