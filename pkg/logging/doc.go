// Package logging provides subsystem-tagged leveled logging on top of log/slog.
//
// Call Init (or InitForCLI) once at startup. After that the package
// functions write through the installed handler:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//	logging.Info("Server", "Listening on %s", addr)
//	logging.Error("Store", err, "Failed to open %s store", storeType)
//
// Every entry carries a "subsystem" attribute, and Error adds an "error"
// attribute. Init also sets slog's default logger, so code that takes a
// *slog.Logger (such as the webauthz engine) writes to the same sink.
package logging
