package logger

import (
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

var defaultLogger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: true,
	TimeFormat:      "15:04:05",
	Level:           charmlog.InfoLevel,
})

// Config controla nível, formato e destino dos logs
type Config struct {
	Level      string
	JSON       bool
	Output     io.Writer
	TimeFormat string
}

// Init substitui o logger padrão
func Init(cfg Config) {
	level, err := charmlog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = charmlog.InfoLevel
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	tf := cfg.TimeFormat
	if tf == "" {
		tf = "15:04:05"
	}
	l := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      tf,
		Level:           level,
	})
	if cfg.JSON {
		l.SetFormatter(charmlog.JSONFormatter)
	} else {
		l.SetFormatter(charmlog.TextFormatter)
	}
	defaultLogger = l
}

func Get() *charmlog.Logger {
	return defaultLogger
}

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

func With(args ...any) *charmlog.Logger {
	return defaultLogger.With(args...)
}
