package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance
var Log = zerolog.Nop()

// Options selects where and how log lines are written.
type Options struct {
	Level  string // debug|info|warn|error
	Format string // json|console
	// File enables a rotating log file in addition to stdout ("" = disabled).
	File           string
	FileMaxSizeMB  int
	FileMaxBackups int
	FileMaxAgeDays int
}

// Init initializes the global logger with the specified level, console output.
func Init(levelStr string) {
	Setup(Options{Level: levelStr, Format: "console"})
}

// Setup initializes the global logger from opts.
func Setup(opts Options) {
	SetLevel(opts.Level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if strings.ToLower(opts.Format) == "json" {
		writers = append(writers, os.Stdout)
	} else {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.FileMaxSizeMB, 50),
			MaxBackups: orDefault(opts.FileMaxBackups, 3),
			MaxAge:     orDefault(opts.FileMaxAgeDays, 7),
			Compress:   true,
		})
	}

	Log = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SetLevel changes the log level at runtime. Valid values: debug, info, warn, error.
// Invalid values fall back to info.
func SetLevel(levelStr string) {
	var lvl zerolog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn", "warning":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	default:
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Debug logs a debug message with alternating key/value pairs
func Debug(msg string, args ...any) {
	Log.Debug().Fields(args).Msg(msg)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Log.Info().Fields(args).Msg(msg)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Log.Warn().Fields(args).Msg(msg)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Log.Error().Fields(args).Msg(msg)
}
