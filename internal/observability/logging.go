// Package observability owns process-wide logging.
//
// Two loggers are exposed: Logger for the serving path (structured, JSON)
// and CLILogger for command output (console encoding, human-readable).
// Both default to no-ops so library code can log before Init runs.
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging profiles.
const (
	// ProfileStructured emits JSON lines, one event per line.
	ProfileStructured = "STRUCTURED"

	// ProfileCLI emits console-encoded output for interactive use.
	ProfileCLI = "CLI"
)

var (
	// Logger is the structured logger for the serving path.
	Logger = zap.NewNop()

	// CLILogger is the console logger for command-line output.
	CLILogger = zap.NewNop()
)

// Config controls logger construction.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Profile selects the encoding for Logger: ProfileStructured or
	// ProfileCLI. CLILogger is always console-encoded.
	Profile string
}

// Init builds the package loggers. Call once at process start.
func Init(cfg Config) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch cfg.Profile {
	case "", ProfileStructured:
		enc = zapcore.NewJSONEncoder(encCfg)
	case ProfileCLI:
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(consoleCfg)
	default:
		return fmt.Errorf("unknown logging profile %q", cfg.Profile)
	}

	sink := zapcore.Lock(os.Stderr)
	Logger = zap.New(zapcore.NewCore(enc, sink, level))

	cliCfg := zap.NewDevelopmentEncoderConfig()
	cliCfg.TimeKey = ""
	CLILogger = zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(cliCfg), sink, level))

	return nil
}

// Sync flushes buffered log entries. Errors from stderr sync are ignored.
func Sync() {
	_ = Logger.Sync()
	_ = CLILogger.Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
