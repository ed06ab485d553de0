package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var nop = zap.NewNop()

// logger is swapped whole by Initialize and SetLogger while engine, bridge
// and simulator goroutines read it.
var logger atomic.Pointer[zap.Logger]

// Environment variables read by Initialize. An empty LORAHUB_LOG_LEVEL keeps
// the CLI silent; LORAHUB_LOG_FORMAT=json switches to one JSON object per
// line, which suits long unattended stream runs.
const (
	LogLevelEnvVar  = "LORAHUB_LOG_LEVEL"
	LogFormatEnvVar = "LORAHUB_LOG_FORMAT"
)

// Initialize builds the process logger. An empty level falls back to
// LORAHUB_LOG_LEVEL; if that is empty too, logging is discarded.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		logger.Store(zap.NewNop())
		return nil
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l, err := newConfig(lvl, os.Getenv(LogFormatEnvVar)).Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Store(l)
	return nil
}

// newConfig writes to stderr so stdout stays free for tables and the
// stream monitor.
func newConfig(lvl zapcore.Level, format string) zap.Config {
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	if format == "json" {
		cfg.Encoding = "json"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		return cfg
	}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", level)
	}
}

// InitializeFromEnv is Initialize("").
func InitializeFromEnv() error {
	return Initialize("")
}

// SetLogger replaces the global logger; nil restores the silent default.
// Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

// GetLogger returns the global logger, a no-op one before Initialize.
func GetLogger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return nop
}

// Named returns the global logger scoped to component, e.g. "ota" or "sim".
func Named(component string) *zap.Logger {
	return GetLogger().Named(component)
}

func Info(msg string, fields ...zap.Field)  { GetLogger().Info(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }

// LogFrame logs a radio frame at debug level.
// direction is "tx" or "rx".
func LogFrame(direction string, payload []byte, fields ...zap.Field) {
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	base := []zap.Field{
		zap.String("direction", direction),
		zap.Int("length", len(payload)),
	}
	if len(payload) > 0 {
		base = append(base, zap.String("opcode", fmt.Sprintf("0x%02x", payload[0])))
	}
	base = append(base, zap.String("hex", hexDump(payload)))
	Debug("Radio frame", append(base, fields...)...)
}

// LogConnection logs a bridge connection event.
func LogConnection(remoteAddr, event string) {
	Info("Bridge connection", zap.String("remote_addr", remoteAddr), zap.String("event", event))
}

// LogRawBytes logs data at debug level as hex and printable ASCII.
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

// maxDump caps how many bytes of a buffer end up in a log line; a
// telemetry page or OTA chunk always fits.
const maxDump = 256

func clip(data []byte) ([]byte, string) {
	if len(data) > maxDump {
		return data[:maxDump], "..."
	}
	return data, ""
}

func hexDump(data []byte) string {
	head, more := clip(data)
	return hex.EncodeToString(head) + more
}

func asciiDump(data []byte) string {
	head, _ := clip(data)
	out := make([]byte, len(head))
	for i, b := range head {
		if b < 0x20 || b > 0x7e {
			b = '.'
		}
		out[i] = b
	}
	return string(out)
}

// Sync flushes any buffered log entries
func Sync() {
	if l := logger.Load(); l != nil {
		_ = l.Sync()
	}
}
