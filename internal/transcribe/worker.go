package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/righteousgambit/SenateTranscript/internal/notify"
)

// State is the worker lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

const (
	DefaultPollInterval  = time.Second
	DefaultMinChunkBytes = 256 * 1024
	DefaultMaxWait       = 30 * time.Second
	DefaultErrorBackoff  = 5 * time.Second

	timestampLayout = "2006-01-02 15:04:05"

	sessionStartMarker = "=== Transcription Session Started ===\n"
	sessionEndMarker   = "\n=== Transcription Session Ended ===\n"
)

// WorkerConfig tunes the incremental transcription loop. Zero values fall
// back to the defaults above.
type WorkerConfig struct {
	AudioPath      string
	TranscriptPath string
	Prompt         string
	RunID          string
	StreamID       string

	PollInterval  time.Duration
	MinChunkBytes int64
	MaxWait       time.Duration
	ErrorBackoff  time.Duration
}

func (c *WorkerConfig) applyDefaults() {
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MinChunkBytes <= 0 {
		c.MinChunkBytes = DefaultMinChunkBytes
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
}

// Worker tails a growing audio file and incrementally appends its
// transcription to the transcript file. It processes the file strictly in
// order: a segment's byte range is retried after a failure and the offset
// only advances once the segment reached the transcript, so the output has
// no gaps and no duplicates. The worker does not terminate itself on
// transcription failures; it backs off and keeps going until Stop.
type Worker struct {
	cfg         WorkerConfig
	transcriber Transcriber
	notifier    notify.Notifier
	logger      *slog.Logger

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	doneCh chan struct{}

	finalizeOnce sync.Once

	// Loop-goroutine state. offset is the number of audio bytes whose
	// transcription reached the transcript file.
	offset  int64
	lastRun time.Time
}

func NewWorker(cfg WorkerConfig, transcriber Transcriber, notifier notify.Notifier, logger *slog.Logger) *Worker {
	cfg.applyDefaults()
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:         cfg,
		transcriber: transcriber,
		notifier:    notifier,
		logger:      logger,
		state:       StateIdle,
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start writes the session start marker, announces the session, and launches
// the transcription loop. A worker starts at most once; restart is not
// supported because the processed offset lives in memory.
func (w *Worker) Start() error {
	w.mu.Lock()
	if w.state != StateIdle {
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("transcription worker already started (state %s)", state)
	}
	w.state = StateRunning
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	if err := appendToFile(w.cfg.TranscriptPath, sessionStartMarker); err != nil {
		w.mu.Lock()
		w.state = StateIdle
		w.mu.Unlock()
		return fmt.Errorf("initializing transcript file: %w", err)
	}
	w.logger.Info("transcript file initialized", "path", w.cfg.TranscriptPath)

	timestamp := time.Now().Format(timestampLayout)
	w.notify(notify.Event{
		Type:     notify.EventSessionStarted,
		Title:    "Senate Stream Started",
		Subtitle: timestamp,
		Message:  "Recording to " + filepath.Base(w.cfg.AudioPath),
		Severity: notify.SeverityInfo,
	})

	w.lastRun = time.Now()
	go w.loop()

	w.logger.Info("transcription worker started")
	return nil
}

// Stop asks the loop to finish its current segment, waits for it to exit,
// writes the session end marker as the final transcript line, and sends the
// session summary. Safe to call more than once; stopping a never-started
// worker is a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state == StateIdle {
		w.state = StateStopped
		w.mu.Unlock()
		return
	}
	if w.state == StateRunning {
		w.state = StateStopping
		close(w.stopCh)
	}
	done := w.doneCh
	w.mu.Unlock()
	if done == nil {
		// Stopped before it ever ran, there is nothing to finalize.
		return
	}

	w.logger.Info("stopping transcription worker")
	<-done

	w.finalizeOnce.Do(w.finalize)

	w.mu.Lock()
	w.state = StateStopped
	w.mu.Unlock()
	w.logger.Info("transcription worker stopped")
}

func (w *Worker) loop() {
	defer close(w.doneCh)

	for {
		if w.stopping() {
			return
		}

		processed, err := w.processOnce(context.Background())
		switch {
		case err != nil:
			w.logger.Error("transcription error", "error", err)
			w.sleep(w.cfg.ErrorBackoff)
		case !processed:
			w.sleep(w.cfg.PollInterval)
		}
	}
}

// processOnce runs one iteration of the loop: snapshot the audio size, check
// the chunk gate, transcribe the new range, and append it. It reports
// whether a segment was processed.
func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	info, err := os.Stat(w.cfg.AudioPath)
	if err != nil {
		w.logger.Debug("waiting for audio file", "path", w.cfg.AudioPath)
		return false, nil
	}

	snapshot := info.Size()
	delta := snapshot - w.offset
	if delta <= 0 {
		return false, nil
	}
	if delta < w.cfg.MinChunkBytes && time.Since(w.lastRun) < w.cfg.MaxWait {
		w.logger.Debug("waiting for more audio data", "delta_kb", delta/1024)
		return false, nil
	}

	w.logger.Info("processing new audio segment", "delta_kb", delta/1024)

	segment, err := w.extractSegment(snapshot)
	if err != nil {
		return false, fmt.Errorf("extracting audio segment: %w", err)
	}
	defer os.Remove(segment)

	text, err := w.transcriber.Transcribe(ctx, segment, w.cfg.Prompt)
	if err != nil {
		return false, fmt.Errorf("transcribing segment: %w", err)
	}
	text = strings.TrimSpace(text)

	timestamp := time.Now().Format(timestampLayout)
	if match, ok := FindTrigger(text); ok {
		w.notify(notify.Event{
			Type:     notify.EventTriggerPhrase,
			Title:    "Unanimous Consent Mentioned",
			Subtitle: timestamp,
			Message:  match,
			Severity: notify.SeverityInfo,
		})
	}

	entry := fmt.Sprintf("\n[%s]\n%s\n", timestamp, text)
	if err := appendToFile(w.cfg.TranscriptPath, entry); err != nil {
		return false, fmt.Errorf("appending transcript: %w", err)
	}

	w.logger.Info("transcript updated", "chars", len(text))
	w.offset = snapshot
	w.lastRun = time.Now()
	return true, nil
}

// extractSegment copies the byte range [offset, snapshot) to a temp file.
// The recorder keeps appending while the copy runs; the section reader caps
// the read at the snapshot so the segment boundary is exact.
func (w *Worker) extractSegment(snapshot int64) (string, error) {
	src, err := os.Open(w.cfg.AudioPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "senatewatch-segment-*.mp3")
	if err != nil {
		return "", err
	}

	section := io.NewSectionReader(src, w.offset, snapshot-w.offset)
	if _, err := io.Copy(tmp, section); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (w *Worker) finalize() {
	timestamp := time.Now().Format(timestampLayout)
	if err := appendToFile(w.cfg.TranscriptPath, sessionEndMarker); err != nil {
		w.logger.Error("failed to write session end marker", "error", err)
	}

	message := "Recording stopped"
	if info, err := os.Stat(w.cfg.AudioPath); err == nil {
		message = fmt.Sprintf("Recorded %.1fMB of audio", float64(info.Size())/(1024*1024))
	}
	w.notify(notify.Event{
		Type:     notify.EventSessionEnded,
		Title:    "Senate Stream Ended",
		Subtitle: timestamp,
		Message:  message,
		Severity: notify.SeverityInfo,
	})
}

func (w *Worker) notify(event notify.Event) {
	event.RunID = w.cfg.RunID
	event.StreamID = w.cfg.StreamID
	event.Timestamp = time.Now()
	if err := w.notifier.Notify(context.Background(), event); err != nil {
		w.logger.Warn("notification failed", "type", event.Type, "error", err)
	}
}

func (w *Worker) stopping() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

// sleep waits for d but returns early when Stop is requested.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// appendToFile opens, appends, and closes so a reader never sees a held-open
// partial write between entries.
func appendToFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(text)
	return err
}
