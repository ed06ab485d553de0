// Package logging provides structured logging for the hub.
//
// This package wraps a global zap logger with convenience functions. The
// logger is silent until Initialize is called with a level or the
// LORAHUB_LOG_LEVEL environment variable is set, so CLI output stays clean
// by default.
//
// # Log Levels
//
//   - Debug: every radio frame sent or received, with a hex dump
//   - Info: command results, transfer state changes, bridge connections
//   - Warn: discarded frames, retransmission rounds, retries
//   - Error: failures that abort an operation
//
// # Radio Frames
//
//	logging.LogFrame("tx", payload, zap.Uint8("target", 5))
//
// LogFrame is a no-op unless debug logging is enabled, so it is safe on the
// hot receive path.
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Set LORAHUB_LOG_FORMAT=json for one JSON object per line. Engines log
// through Named("protocol"), Named("ota") and so on unless given their own
// logger. Output goes to stderr so it never mixes with tables or the stream
// monitor on stdout.
package logging
