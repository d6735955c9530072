package logger_test

import (
	"errors"

	"github.com/wonny/histpos/pkg/config"
	"github.com/wonny/histpos/pkg/logger"
)

// Example_component demonstrates handing a component logger to an internal package
func Example_component() {
	log := logger.New(&config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	})

	engineLog := log.Component("engine")
	engineLog.Info().
		Str("code", "005930").
		Int("similar_periods", 42).
		Msg("analysis completed")
}

// Example_withError demonstrates error logging with fields
func Example_withError() {
	log := logger.New(&config.Config{
		Env:       "production",
		LogLevel:  "error",
		LogFormat: "json",
	})

	err := errors.New("redis connection refused")
	log.WithError(err).
		WithFields(map[string]interface{}{
			"code":    "512880",
			"profile": "sector_etf",
		}).
		Error("result cache lookup failed")
}
