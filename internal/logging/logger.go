// Package logging builds the process-wide zap logger. Log output goes
// to a rotating-free file under the user's config directory so it never
// interleaves with the interactive prompts on the terminal; --verbose
// additionally mirrors debug output to stderr.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"typysetup/internal/prefs"
)

const logFileName = "typysetup.log"

// New constructs the application logger. With verbose set, debug-level
// output is also written to stderr; otherwise the terminal stays quiet
// and only the log file receives records.
func New(verbose bool) (*zap.Logger, error) {
	var cores []zapcore.Core

	if path, err := logFilePath(); err == nil {
		if f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			encCfg := zap.NewProductionEncoderConfig()
			encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(encCfg),
				zapcore.AddSync(f),
				zapcore.InfoLevel,
			))
		}
	}

	if verbose {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(os.Stderr),
			zapcore.DebugLevel,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

func logFilePath() (string, error) {
	dir, err := prefs.ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, logFileName), nil
}
