// Package logging provides structured logging for imecore.
//
// It wraps Go's log/slog to write JSON lines, one per entry, either to stderr
// or to imecore.log inside a configured directory. Components receive a
// *Logger and derive children carrying persistent attributes:
//
//	logger, err := logging.NewLogger("/var/log/imecore", logging.LevelInfo)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	dl := logger.WithComponent("dispatcher").WithSession("keyboard")
//	dl.Warn("stale task", "task", "process_key", "queued_ms", 2400)
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"stale task","component":"dispatcher","session":"keyboard","task":"process_key","queued_ms":2400}
//
// # Log Rotation
//
// Long-running daemons should enable size-based rotation:
//
//	logger, err := logging.NewLoggerWithRotation(dir, "INFO", logging.DefaultRotationConfig())
//
// Rotated files are named imecore.log.1 (newest) through imecore.log.N.
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a buffer to
// assert on what was logged.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package logging
