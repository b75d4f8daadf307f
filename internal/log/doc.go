// Package log builds the crawler's structured loggers on top of log/slog.
//
// The crawler's configuration and command line express verbosity as a
// number from 0 to 7:
//
//	0 none     nothing is logged
//	1 fatal    only errors that end the process
//	2 error
//	3 warning
//	4 info     session lifecycle (default)
//	5 debug    per-session details, file names
//	6 trace    per-query failures
//	7 verbose  one line per discovered node
//
// Levels 1-5 map onto the slog levels of the same name. Fatal, trace and
// verbose are extra slog levels; their names are rendered as FATAL, TRACE and
// VERBOSE instead of slog's default "ERROR+4" style.
//
// # Usage
//
//	logger := log.New(os.Stderr, cfg.LogLevel)
//	slog.SetDefault(logger)
//
//	if logger.Enabled(ctx, log.LevelVerbose) {
//	    logger.Log(ctx, log.LevelVerbose, "node discovered", "id", id)
//	}
package log
