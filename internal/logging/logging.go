package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	level = new(slog.LevelVar)

	mu     sync.RWMutex
	logger = newLogger(os.Stdout)

	rotating *lumberjack.Logger
)

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(
		slog.NewTextHandler(
			w, &slog.HandlerOptions{
				Level: level,
			},
		),
	)
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func SetDebug(enable bool) {
	if enable {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
}

// LogToFile tees log output into a size-rotated file at path. An empty path
// restores logging to stdout only.
func LogToFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	if rotating != nil {
		_ = rotating.Close()
		rotating = nil
	}
	if path == "" {
		logger = newLogger(os.Stdout)
		return
	}
	rotating = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	logger = newLogger(io.MultiWriter(os.Stdout, rotating))
}

func Info(msg string) {
	current().Info(msg)
}

func Infof(msg string, args ...any) {
	current().Info(fmt.Sprintf(msg, args...))
}

func Warnf(msg string, args ...any) {
	current().Warn(fmt.Sprintf(msg, args...))
}

func Error(msg string, err error) {
	current().Error(msg, "error", err)
}

func Errorf(msg string, args ...any) {
	current().Error(fmt.Sprintf(msg, args...))
}

func Fatalf(format string, v ...any) {
	current().Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}

func Debug(msg string) {
	current().Debug(msg)
}

func Debugf(msg string, args ...any) {
	l := current()
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.Debug(fmt.Sprintf(msg, args...))
}
