package bot

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger writes JSON to stdout, and to a rotated file as well when one is
// configured. Debug mode keeps the default text logger.
func newLogger(conf Config) (*slog.Logger, io.Closer) {
	if conf.Debug {
		return slog.Default(), nopCloser{}
	}

	if conf.LogFile == "" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})), nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   conf.LogFile,
		MaxSize:    conf.LogMaxSizeMB,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
	w := io.MultiWriter(os.Stdout, file)

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true})), file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
