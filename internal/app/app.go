package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/righteousgambit/SenateTranscript/config"
	"github.com/righteousgambit/SenateTranscript/internal/domain/session"
	"github.com/righteousgambit/SenateTranscript/internal/domain/session/usecases"
	"github.com/righteousgambit/SenateTranscript/internal/notify"
	"github.com/righteousgambit/SenateTranscript/internal/output"
	"github.com/righteousgambit/SenateTranscript/internal/recorder"
	"github.com/righteousgambit/SenateTranscript/internal/stream"
	"github.com/righteousgambit/SenateTranscript/internal/transcribe"
)

type App struct {
	Resolver    *stream.Resolver
	Supervisor  *recorder.Supervisor
	Transcriber transcribe.Transcriber
	Notifier    notify.Notifier
	Watch       *usecases.Watch
}

func New(cfg *config.Config) (*App, error) {
	logger := slog.Default()

	resolver := stream.NewResolver(logger)
	if cfg.FeedURL != "" {
		resolver.FeedURL = cfg.FeedURL
	}

	supervisor := recorder.NewSupervisor(logger)

	transcriber, err := newTranscriber(cfg, logger)
	if err != nil {
		return nil, err
	}

	notifier := newNotifier(cfg, logger)

	watch := &usecases.Watch{
		Resolver:      resolver,
		Supervisor:    supervisor,
		Notifier:      notifier,
		Output:        output.NewFormatter(os.Stdout),
		Logger:        logger,
		RecordingsDir: cfg.RecordingsDir,
		NewWorker: func(rec session.Recording) usecases.Worker {
			return transcribe.NewWorker(transcribe.WorkerConfig{
				AudioPath:      rec.AudioPath,
				TranscriptPath: rec.TranscriptPath,
				RunID:          rec.RunID,
				StreamID:       rec.StreamID,
			}, transcriber, notifier, logger)
		},
	}

	return &App{
		Resolver:    resolver,
		Supervisor:  supervisor,
		Transcriber: transcriber,
		Notifier:    notifier,
		Watch:       watch,
	}, nil
}

func newTranscriber(cfg *config.Config, logger *slog.Logger) (transcribe.Transcriber, error) {
	switch cfg.Transcriber {
	case config.TranscriberWhisperCLI:
		return transcribe.NewWhisperCLI(cfg.WhisperBin, cfg.WhisperModel, logger), nil
	case config.TranscriberOpenAI:
		return transcribe.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q: use %s or %s",
			cfg.Transcriber, config.TranscriberWhisperCLI, config.TranscriberOpenAI)
	}
}

func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	if cfg.Notifications {
		notifiers = append(notifiers, notify.NewDesktopNotifier())
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.WebhookURL, nil))
	}
	return notify.NewMultiNotifier(notifiers...)
}
