package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/righteousgambit/SenateTranscript/config"
	"github.com/righteousgambit/SenateTranscript/internal/app"
	"github.com/righteousgambit/SenateTranscript/internal/version"
)

type Dependencies struct {
	App    *app.App
	Config *config.Config
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "senatewatch",
		Short: "Record and transcribe the live US Senate floor stream",
		Long:  "Watches the Senate floor schedule, records the live stream with ffmpeg, transcribes the audio as it grows, and alerts when \"unanimous consent\" is spoken.",
		// The app is built here rather than in main so components pick up
		// the logger configured from --log-level.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(logLevel); err != nil {
				return err
			}
			application, err := app.New(deps.Config)
			if err != nil {
				return err
			}
			deps.App = application
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewWatchCmd(deps))
	rootCmd.AddCommand(NewResolveCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}

func setupLogging(level string) error {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	slog.SetDefault(slog.New(handler))
	return nil
}
