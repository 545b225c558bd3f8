// Package logging provides structured logging utilities for crmgate.
//
// All logging goes through log/slog. This package keeps attribute names
// consistent across the dispatcher, the telemetry recorder and the CRM
// client, and makes sure credentials never reach the log stream.
//
// # Usage Patterns
//
//	logger := logging.WithComponent(slog.Default(), "dispatch")
//	logger.Info("operation finished",
//	    logging.Operation("list-deals"),
//	    logging.CorrelationID(id),
//	    logging.Status(logging.StatusSuccess))
//
// Redact credentials before logging outbound requests:
//
//	logger.Debug("crm request", "url", logging.RedactURL(req.URL))
//
// # Stdio Transports
//
// When the process speaks the envelope protocol on stdout, build the logger
// with New(os.Stderr, ...) so log lines never interleave with responses.
package logging
