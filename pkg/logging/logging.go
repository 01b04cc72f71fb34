// Package logging configures the global zerolog logger from command-line/viper settings.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Settings struct {
	Level  string `mapstructure:"log-level"`
	Format string `mapstructure:"log-format"`
	// File, when set, receives logs instead of stderr and is rotated.
	File       string `mapstructure:"log-file"`
	MaxSizeMB  int    `mapstructure:"log-max-size"`
	MaxBackups int    `mapstructure:"log-max-backups"`
	MaxAgeDays int    `mapstructure:"log-max-age"`
}

func DefaultSettings() Settings {
	return Settings{
		Level:      "info",
		Format:     FormatText,
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// ParseLevel accepts zerolog level names plus "warning".
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "invalid log level %q", s)
	}
	return lvl, nil
}

// NewLogger builds a logger for s. The returned closer releases the log file, if any.
func NewLogger(s Settings, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(s.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	var out io.Writer = stderr
	var closer io.Closer = nopCloser{}
	if s.File != "" {
		lj := &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    s.MaxSizeMB,
			MaxBackups: s.MaxBackups,
			MaxAge:     s.MaxAgeDays,
		}
		out, closer = lj, lj
	}

	switch strings.ToLower(s.Format) {
	case "", FormatText:
		if s.File == "" && isTerminal(stderr) {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
		} else if s.File != "" {
			out = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
		}
	case FormatJSON:
	default:
		return zerolog.Nop(), nil, errors.Errorf("invalid log format %q", s.Format)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), closer, nil
}

// Init replaces the global logger.
func Init(s Settings) (io.Closer, error) {
	l, closer, err := NewLogger(s, os.Stderr)
	if err != nil {
		return nil, err
	}
	log.Logger = l
	zerolog.SetGlobalLevel(l.GetLevel())
	return closer, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
