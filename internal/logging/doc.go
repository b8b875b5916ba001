// Package logging provides structured logging for the deskpanel tools.
//
// A single zap logger is held at package level. It is silent until
// Initialize is called with a level or DESKPANEL_LOG_LEVEL is set, so CLI
// output stays clean by default:
//
//	DESKPANEL_LOG_LEVEL=debug deskpanel-cfg deploy --config layout.json
//
// Components that do I/O (hidbridge, wifi, deviceapi, deploy) accept an
// injected *zap.Logger and fall back to GetLogger when given nil:
//
//	log := logging.Or(cfg.Logger)
//	log.Info("Joined access point", zap.String("ssid", ssid))
//
// Logs go to stderr in console format so they never interleave with
// command output written to stdout.
package logging
