package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rpggio/opsdash/internal/app"
	"github.com/rpggio/opsdash/internal/config"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
	logFile io.Closer
)

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandContextKey struct{}

var rootCmd = &cobra.Command{
	Use:           "opsdash",
	Short:         "Operations dashboard metrics service",
	Long:          "opsdash reads the project and issue reports, derives dashboard metrics and serves them over HTTP and MCP.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       app.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			if err := os.Setenv("OPSDASH_CONFIG_PATH", cfgFile); err != nil {
				return err
			}
		}
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		cfg = loaded

		// Only the HTTP server may log to stdout; the other commands print
		// results or speak MCP there.
		var w io.Writer = os.Stderr
		if cmd.Name() == "serve" {
			w = os.Stdout
		}
		if cfg.Log.Path != "" {
			fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
			} else {
				logFile = file
				w = fileWriter
			}
		}
		logger = newLogger(w, cfg.Log)
		slog.SetDefault(logger)

		info := commandContext{correlationID: uuid.New(), startedAt: time.Now()}
		cmd.SetContext(context.WithValue(cmd.Context(), commandContextKey{}, info))
		logger.Debug("command start",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if ok && logger != nil {
			logger.Debug("command end",
				"command", cmd.CommandPath(),
				"correlation_id", info.correlationID.String(),
				"duration_ms", time.Since(info.startedAt).Milliseconds(),
			)
		}
		if logFile != nil {
			_ = logFile.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (overrides OPSDASH_CONFIG_PATH)")
	rootCmd.AddCommand(serveCmd, mcpCmd, refreshCmd, exportCmd, apiKeyCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp wires every backend for commands that need the dashboard.
func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(lc.Level)}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
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
