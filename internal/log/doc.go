// Package log builds the slog loggers used by pathfinder.
//
// Every logger returned by NewLogger routes records through SecureHandler,
// which masks credentials before they reach the output: Cookie and
// Authorization headers, tokens, configured custom header names and the
// userinfo part of proxy URLs. Probed paths, status codes, sizes and body
// fingerprints are left intact so that scan logs stay useful.
//
//	logger := log.NewLogger(os.Stderr,
//	    log.WithVerbose(cfg.Verbose),
//	    log.WithSensitiveKeys("X-Session"),
//	)
//	logger.Debug("probe", "cookie", cfg.Cookie) // cookie=***REDACTED***
package log
