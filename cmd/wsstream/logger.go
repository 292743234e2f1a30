package main

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Zereker/wsstream"
)

// newLogger builds the command logger: "text" writes zerolog console
// output, "json" writes zap production JSON. The returned func flushes
// buffered entries.
func newLogger(format, level string, w io.Writer) (wsstream.Logger, func(), error) {
	switch format {
	case "", "text":
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "parse log level %q", level)
		}
		output := zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
		logger := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "wsstream").Logger()
		return wsstream.ZerologLogger(logger), func() {}, nil

	case "json":
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "parse log level %q", level)
		}
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			zap.NewAtomicLevelAt(lvl),
		)
		logger := zap.New(core).With(zap.String("app", "wsstream"))
		return wsstream.ZapLogger(logger), func() { _ = logger.Sync() }, nil

	default:
		return nil, nil, errors.Errorf("unknown log format %q (want text or json)", format)
	}
}
