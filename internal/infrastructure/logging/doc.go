// Package logging provides structured logging for the valve daemon.
//
// It wraps log/slog with JSON or text output, level filtering and default
// service and version fields on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("starting valve", "unique_id", cfg.Valve.UniqueID)
//	node.SetLogger(logger.Component("hass"))
//
// Never log secrets such as the MQTT password, InfluxDB token or JWT secret.
package logging
