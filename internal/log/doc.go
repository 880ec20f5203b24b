// Package log provides the slog handlers used by sitemirror.
//
//   - ConsoleHandler: one line per record with an ISO timestamp and a level
//     letter, and on a terminal an in-place progress line fed by the records
//     that fall below the minimum level
//   - SecureHandler: masks credential headers passed with --header and
//     strips passwords and secret query values (token, sig, key) from URLs in
//     attributes and messages
//
// # Levels
//
// The ladder is trace < debug < info < warn < error < tty < none. With the
// default info level, per-link trace and debug messages only flash on the
// progress line while page and file milestones are printed.
//
// # Usage
//
//	level, _ := log.ParseLevel("info")
//	logger := log.NewLogger(os.Stderr, level, log.IsTerminal(os.Stderr))
//	logger.Log(ctx, log.LevelTrace, "handle", "url", u)
package log
