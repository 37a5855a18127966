package cli

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func NewWatchCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Record and transcribe the live Senate session",
		Long:  "Resolves the live stream from the floor schedule, records video and audio with ffmpeg, and transcribes the audio incrementally until the session ends or Ctrl+C.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logConfig(deps)

			return deps.App.Watch.Execute(ctx)
		},
	}

	// Bound directly to the config so the notifier stack built in the root
	// PersistentPreRunE sees the flag value.
	cmd.Flags().BoolVar(&deps.Config.Notifications, "notifications", deps.Config.Notifications,
		"Show desktop notifications")

	return cmd
}

func logConfig(deps *Dependencies) {
	feedURL := deps.Config.FeedURL
	if feedURL == "" {
		feedURL = "(default)"
	}
	slog.Info("configuration",
		"recordings_dir", deps.Config.RecordingsDir,
		"feed_url", feedURL,
		"transcriber", deps.Config.Transcriber,
		"notifications", deps.Config.Notifications,
	)
}
