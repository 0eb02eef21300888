// Package logger wraps logrus with the defaults used across the service.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingConfig selects level, format and destination.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// Logger is a logrus logger tagged with a component name.
type Logger struct {
	*logrus.Logger
	name string
}

// New builds a logger from cfg. Unknown levels fall back to info; an output
// of "file" writes to <FilePrefix>-<date>.log and falls back to stdout when
// the file cannot be opened.
func New(cfg LoggingConfig) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	l.SetOutput(output(cfg))
	return &Logger{Logger: l}
}

// NewDefault returns an info-level text logger for the named component.
func NewDefault(name string) *Logger {
	return New(LoggingConfig{Level: "info"}).Named(name)
}

// Named returns a logger sharing the configuration whose entries carry the
// component field.
func (l *Logger) Named(name string) *Logger {
	child := logrus.New()
	child.SetLevel(l.GetLevel())
	child.SetFormatter(l.Formatter)
	child.SetOutput(l.Out)
	for _, hooks := range l.Hooks {
		for _, h := range hooks {
			if _, ok := h.(componentHook); ok {
				continue
			}
			child.AddHook(h)
		}
	}
	if name != "" {
		child.AddHook(componentHook{name: name})
	}
	return &Logger{Logger: child, name: name}
}

// Name returns the component name, if any.
func (l *Logger) Name() string { return l.name }

func output(cfg LoggingConfig) io.Writer {
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "stderr":
		return os.Stderr
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "raffled"
		}
		path := prefix + "-" + time.Now().UTC().Format("2006-01-02") + ".log"
		if dir := filepath.Dir(path); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}

type componentHook struct {
	name string
}

func (h componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h componentHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["component"]; !ok {
		e.Data["component"] = h.name
	}
	return nil
}
