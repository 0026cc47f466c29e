// Package telemetry is the ambient observability layer: slog logging setup
// and OpenTelemetry metrics/tracing initialization, plus the instrument set
// a reconciliation round reports through. It mirrors the core library's
// logging and otelinit packages closely, renamed for this module and
// extended with the counters a set-reconciliation daemon actually needs
// (rounds, estimated/decoded differences, undecodable peelings) in place of
// the original's retry/circuit-breaker instruments.
package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogging configures a global slog logger for service. JSON output if
// SETRECON_JSON_LOG is 1/true/json, text otherwise; level from
// SETRECON_LOG_LEVEL (debug/info/warn/error, default info).
func InitLogging(service string) *slog.Logger {
	mode := strings.ToLower(os.Getenv("SETRECON_JSON_LOG"))
	var handler slog.Handler
	opts := &slog.HandlerOptions{AddSource: false, Level: levelFromEnv()}
	if mode == "1" || mode == "true" || mode == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Info("logging initialized", "json", mode == "1" || mode == "true" || mode == "json")
	return logger
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("SETRECON_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
