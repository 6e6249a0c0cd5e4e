package utils

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. It discards output until InitLogger runs.
var Logger = zerolog.Nop()

// InitLogger configures the console logger.
func InitLogger() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger().
		Level(zerolog.InfoLevel)

	if os.Getenv("GIN_MODE") == "debug" {
		Logger = Logger.Level(zerolog.DebugLevel)
	}

	Logger.Info().Msg("logger initialised")
}

// LogApiRequest logs an incoming request, truncating the Authorization header.
func LogApiRequest(requestID, method, url string, params interface{}, headers map[string]string) {
	if auth := headers["Authorization"]; len(auth) > 15 {
		headers["Authorization"] = auth[:15] + "..."
	}

	Logger.Info().
		Str("requestId", requestID).
		Str("method", method).
		Str("url", url).
		Interface("params", params).
		Interface("headers", headers).
		Msg("api request")
}

// LogApiResponse logs the outcome of a request at error level for 4xx/5xx.
func LogApiResponse(requestID, method, url string, statusCode int, responseTime time.Duration) {
	event := Logger.Info()
	if statusCode >= 400 {
		event = Logger.Error()
	}
	event.
		Str("requestId", requestID).
		Str("method", method).
		Str("url", url).
		Int("statusCode", statusCode).
		Dur("responseTime", responseTime).
		Msg("api response")
}

// LogDbOperation logs a storage call at debug level.
func LogDbOperation(operation string, collection string, query interface{}, result interface{}) {
	Logger.Debug().
		Str("operation", operation).
		Str("collection", collection).
		Interface("query", query).
		Interface("result", result).
		Msg("db operation")
}
