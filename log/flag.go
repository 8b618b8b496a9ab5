package log

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// RegisterLoggingFlags adds the shared logging flags to a command.
func RegisterLoggingFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("loglevel", "warn", "set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringP("logformat", "f", "text", "set the log format (text, json)")
}

// GetBaseLogger builds the logger the command's flags describe.
func GetBaseLogger(cmd *cobra.Command) (*slog.Logger, error) {
	logLevel, err := GetLoggerLevel(cmd)
	if err != nil {
		return nil, err
	}

	format := cmd.Flag("logformat").Value.String()
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(cmd.OutOrStdout(), &slog.HandlerOptions{
			Level: logLevel,
		})
	case "text":
		handler = slog.NewTextHandler(cmd.OutOrStdout(), &slog.HandlerOptions{
			Level: logLevel,
		})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	return slog.New(handler), nil
}

// GetLoggerLevel parses the loglevel flag.
func GetLoggerLevel(cmd *cobra.Command) (slog.Level, error) {
	logLevel := cmd.Flag("loglevel").Value.String()
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return slog.LevelWarn, fmt.Errorf("invalid log level: %s", logLevel)
	}
	return level, nil
}
