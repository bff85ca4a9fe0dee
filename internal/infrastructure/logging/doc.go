// Package logging builds the process-wide structured logger.
//
// Logger embeds *slog.Logger, so components that only need Debug, Info,
// Warn and Error can take a small interface and be handed a *Logger.
// Every record carries "service" and "version"; Component adds a
// "component" attribute for the subsystem that logged it.
//
//	logging:
//	  level: info     # debug, info, warn, error
//	  format: json    # json or text
//	  output: stdout  # stdout or stderr
//
// Device serials and plan contents are fine to log. MQTT passwords,
// JWT secrets and bearer tokens are not.
package logging
