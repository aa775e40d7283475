// Package logging provides structured logging for BabyBox.
//
// It wraps the standard log/slog package to give every component the same
// output shape: JSON (or text) records with service and version fields and
// level-based filtering, configured from the logging section of config.yaml.
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("playback started", "media_id", id)
//
// Never log tag UIDs alongside child activity in a way that would surprise
// a parent reviewing the logs; keep payloads boring.
package logging
