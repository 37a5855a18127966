package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/righteousgambit/SenateTranscript/internal/domain/session"
	"github.com/righteousgambit/SenateTranscript/internal/notify"
	"github.com/righteousgambit/SenateTranscript/internal/output"
	"github.com/righteousgambit/SenateTranscript/internal/recorder"
	"github.com/righteousgambit/SenateTranscript/internal/retry"
	"github.com/righteousgambit/SenateTranscript/internal/stream"
)

const (
	// Resolution is retried on this schedule; the feed simply reports no
	// session most of the day.
	DefaultResolveAttempts = 3
	DefaultResolveDelay    = 10 * time.Second

	DefaultVerifyTimeout = 30 * time.Second

	runIDLength = 10
)

// Resolver finds the live stream playlist URL.
type Resolver interface {
	ResolveWithRetry(ctx context.Context, policy retry.Policy) (stream.Resolution, error)
}

// Supervisor controls the external recording process.
type Supervisor interface {
	Start(ctx context.Context, streamURL, videoPath, audioPath string) (*recorder.Handle, error)
	VerifyGrowth(h *recorder.Handle, timeout time.Duration) bool
	MonitorDiagnostics(h *recorder.Handle) int
	Shutdown(h *recorder.Handle) error
}

// Worker is the transcription loop running next to the recorder.
type Worker interface {
	Start() error
	Stop()
}

// Watch records the live Senate floor stream and transcribes it until the
// recorder exits or the context is cancelled. Transcription failures never
// reach this level; the worker handles them internally.
type Watch struct {
	Resolver   Resolver
	Supervisor Supervisor
	NewWorker  func(rec session.Recording) Worker
	Notifier   notify.Notifier
	Output     *output.Formatter
	Logger     *slog.Logger

	RecordingsDir string
	ResolvePolicy retry.Policy
	VerifyTimeout time.Duration
}

// Execute runs one watch session. A nil return means a clean shutdown after
// recording; any error means the run failed and the process should exit
// non-zero.
func (w *Watch) Execute(ctx context.Context) error {
	log := w.logger()

	res, err := w.Resolver.ResolveWithRetry(ctx, w.resolvePolicy())
	if err != nil {
		return fmt.Errorf("resolving stream: %w", err)
	}

	runID, err := gonanoid.New(runIDLength)
	if err != nil {
		return fmt.Errorf("generating run ID: %w", err)
	}
	rec := session.NewRecording(w.RecordingsDir, res.Descriptor.StreamID(), runID)
	log.Info("watch session starting",
		"run_id", rec.RunID,
		"stream_id", rec.StreamID,
		"url", res.PlayableURL,
	)
	w.warnExistingOutputs(rec)

	handle, err := w.Supervisor.Start(ctx, res.PlayableURL, rec.VideoPath, rec.AudioPath)
	if err != nil {
		return fmt.Errorf("starting recorder: %w", err)
	}

	worker := w.NewWorker(rec)
	if err := worker.Start(); err != nil {
		_ = w.Supervisor.Shutdown(handle)
		return fmt.Errorf("starting transcription worker: %w", err)
	}

	if !w.Supervisor.VerifyGrowth(handle, w.verifyTimeout()) {
		w.notifyFailure(ctx, rec)
		w.cleanup(worker, handle, rec)
		return fmt.Errorf("recording verification failed: output files not growing")
	}
	w.output().RecordingStarted(rec.VideoPath, rec.AudioPath)

	monitorDone := make(chan int, 1)
	go func() { monitorDone <- w.Supervisor.MonitorDiagnostics(handle) }()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
		w.cleanup(worker, handle, rec)
		return nil
	case code := <-monitorDone:
		w.cleanup(worker, handle, rec)
		return fmt.Errorf("recorder exited unexpectedly with code %d", code)
	}
}

// cleanup stops the worker before the recorder so the final audio segment is
// transcribed from a file that is no longer growing.
func (w *Watch) cleanup(worker Worker, handle *recorder.Handle, rec session.Recording) {
	worker.Stop()
	if err := w.Supervisor.Shutdown(handle); err != nil {
		w.logger().Warn("recorder shutdown reported an error", "error", err)
	}
	w.output().CleanupSummary(time.Since(rec.StartedAt), fileSize(rec.VideoPath), fileSize(rec.AudioPath))
}

func (w *Watch) warnExistingOutputs(rec session.Recording) {
	for _, path := range []string{rec.VideoPath, rec.AudioPath} {
		if info, err := os.Stat(path); err == nil {
			w.output().Warning(fmt.Sprintf("Overwriting existing file %s (%.1fMB)",
				path, float64(info.Size())/(1024*1024)))
		}
	}
}

func (w *Watch) notifyFailure(ctx context.Context, rec session.Recording) {
	if w.Notifier == nil {
		return
	}
	err := w.Notifier.Notify(ctx, notify.Event{
		Type:      notify.EventRecordingFailed,
		RunID:     rec.RunID,
		StreamID:  rec.StreamID,
		Title:     "Senate Recording Failed",
		Message:   "Recorder output files are not growing",
		Severity:  notify.SeverityError,
		Timestamp: time.Now(),
	})
	if err != nil {
		w.logger().Warn("notification failed", "error", err)
	}
}

func (w *Watch) resolvePolicy() retry.Policy {
	if w.ResolvePolicy.MaxAttempts > 0 {
		return w.ResolvePolicy
	}
	return retry.Policy{MaxAttempts: DefaultResolveAttempts, Delay: DefaultResolveDelay}
}

func (w *Watch) verifyTimeout() time.Duration {
	if w.VerifyTimeout > 0 {
		return w.VerifyTimeout
	}
	return DefaultVerifyTimeout
}

func (w *Watch) output() *output.Formatter {
	if w.Output != nil {
		return w.Output
	}
	return output.NewFormatter(os.Stdout)
}

func (w *Watch) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
