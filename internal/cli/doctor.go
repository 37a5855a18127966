package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/righteousgambit/SenateTranscript/config"
	"github.com/righteousgambit/SenateTranscript/internal/notify"
	"github.com/righteousgambit/SenateTranscript/internal/output"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	var testNotification bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(os.Stdout)
			ok := true

			if version, err := ffmpegVersion(cmd.Context()); err != nil {
				f.SetupCheck("ffmpeg", false, "not found. Install with: brew install ffmpeg")
				ok = false
			} else {
				f.SetupCheck("ffmpeg", true, version)
			}

			ok = checkTranscriber(f, deps.Config) && ok
			ok = checkRecordingsDir(f, deps.Config.RecordingsDir) && ok

			if testNotification {
				ok = checkNotification(cmd.Context(), f) && ok
			}

			if ok {
				f.Success("\nAll prerequisites met. Ready to watch!")
			} else {
				f.Warning("\nSome prerequisites are missing.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&testNotification, "notifications", false, "Send a test desktop notification")

	return cmd
}

func checkTranscriber(f *output.Formatter, cfg *config.Config) bool {
	switch cfg.Transcriber {
	case config.TranscriberWhisperCLI:
		bin := cfg.WhisperBin
		if bin == "" {
			bin = "whisper-cli"
		}
		if _, err := exec.LookPath(bin); err != nil {
			f.SetupCheck("whisper binary", false, bin+" not found. Install with: brew install whisper-cpp")
			return false
		}
		f.SetupCheck("whisper binary", true, bin)

		if cfg.WhisperModel == "" {
			f.SetupCheck("whisper model", false, "not set. Add whisper_model to config")
			return false
		}
		if _, err := os.Stat(cfg.WhisperModel); err != nil {
			f.SetupCheck("whisper model", false, "not found at "+cfg.WhisperModel)
			return false
		}
		f.SetupCheck("whisper model", true, cfg.WhisperModel)
		return true
	case config.TranscriberOpenAI:
		if cfg.OpenAIAPIKey == "" {
			f.SetupCheck("OpenAI API key", false, "not set. Set SENATEWATCH_OPENAI_API_KEY or add to config")
			return false
		}
		f.SetupCheck("OpenAI API key", true, "configured")
		return true
	default:
		f.SetupCheck("transcriber", false, fmt.Sprintf("unknown backend %q", cfg.Transcriber))
		return false
	}
}

func checkRecordingsDir(f *output.Formatter, dir string) bool {
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		f.SetupCheck("recordings directory", false, dir+" is not writable")
		return false
	}
	probe.Close()
	os.Remove(probe.Name())
	f.SetupCheck("recordings directory", true, dir)
	return true
}

func checkNotification(ctx context.Context, f *output.Formatter) bool {
	err := notify.NewDesktopNotifier().Notify(ctx, notify.Event{
		Title:     "senatewatch",
		Message:   "Notifications are working",
		Severity:  notify.SeverityInfo,
		Timestamp: time.Now(),
	})
	if err != nil {
		f.SetupCheck("notifications", false, err.Error())
		return false
	}
	f.SetupCheck("notifications", true, "test notification sent")
	return true
}

func ffmpegVersion(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-version").Output()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
