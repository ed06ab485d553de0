// Package ui renders the acclogger terminal output.
//
// This package uses Bubble Tea and Lipgloss to render command output in a
// "run once and exit" pattern: a header naming the command and its
// parameters, live progress while the radio works, and a result box. None
// of it needs user interaction apart from the programming confirmation.
//
// # Components
//
//   - Header: command banner showing operation name and parameters
//   - Progress: progress bar with the programming phases as steps
//   - Result: success/failure boxes with styled details
//   - UnitTable: requested versus acknowledged units for group commands
//
// The ProgramRunner ties these together for the program command. It is
// fed ota.Event values from the programmer's Progress callback.
//
// # Logging Integration
//
// Logging is controlled via the LORAHUB_LOG_LEVEL environment variable or
// the --log-level flag. When unset, zap logging is silent, so the curated
// UI output is all the user sees.
package ui
