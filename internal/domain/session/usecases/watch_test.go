package usecases

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/righteousgambit/SenateTranscript/internal/domain/session"
	"github.com/righteousgambit/SenateTranscript/internal/notify"
	"github.com/righteousgambit/SenateTranscript/internal/output"
	"github.com/righteousgambit/SenateTranscript/internal/recorder"
	"github.com/righteousgambit/SenateTranscript/internal/retry"
	"github.com/righteousgambit/SenateTranscript/internal/stream"
)

type fakeResolver struct {
	res stream.Resolution
	err error
}

func (f *fakeResolver) ResolveWithRetry(ctx context.Context, policy retry.Policy) (stream.Resolution, error) {
	return f.res, f.err
}

type fakeSupervisor struct {
	mu sync.Mutex

	startErr  error
	verifyOK  bool
	exitCodes chan int

	startURL   string
	videoPath  string
	audioPath  string
	started    int
	verified   int
	shutdowns  int
	monitoring int
}

func (f *fakeSupervisor) Start(ctx context.Context, streamURL, videoPath, audioPath string) (*recorder.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	f.startURL = streamURL
	f.videoPath = videoPath
	f.audioPath = audioPath
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &recorder.Handle{VideoPath: videoPath, AudioPath: audioPath, StartedAt: time.Now()}, nil
}

func (f *fakeSupervisor) VerifyGrowth(h *recorder.Handle, timeout time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified++
	return f.verifyOK
}

func (f *fakeSupervisor) MonitorDiagnostics(h *recorder.Handle) int {
	f.mu.Lock()
	f.monitoring++
	f.mu.Unlock()
	return <-f.exitCodes
}

func (f *fakeSupervisor) Shutdown(h *recorder.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

func (f *fakeSupervisor) shutdownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdowns
}

type fakeWorker struct {
	mu       sync.Mutex
	rec      session.Recording
	startErr error
	started  int
	stopped  int
}

func (f *fakeWorker) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return f.startErr
}

func (f *fakeWorker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(ctx context.Context, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func newTestWatch(t *testing.T, resolver *fakeResolver, supervisor *fakeSupervisor) (*Watch, *fakeWorker, *recordingNotifier) {
	t.Helper()
	worker := &fakeWorker{}
	notifier := &recordingNotifier{}
	w := &Watch{
		Resolver:      resolver,
		Supervisor:    supervisor,
		Notifier:      notifier,
		Output:        output.NewFormatter(&bytes.Buffer{}),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		RecordingsDir: t.TempDir(),
		ResolvePolicy: retry.Policy{MaxAttempts: 1},
		VerifyTimeout: time.Millisecond,
		NewWorker: func(rec session.Recording) Worker {
			worker.rec = rec
			return worker
		},
	}
	return w, worker, notifier
}

func liveResolution() stream.Resolution {
	return stream.Resolution{
		PlayableURL: "https://cdn.test/master.m3u8",
		Descriptor:  stream.Descriptor{Committee: "stvp", FileBase: "floor061025"},
	}
}

func TestWatchCleanShutdownOnSignal(t *testing.T) {
	supervisor := &fakeSupervisor{verifyOK: true, exitCodes: make(chan int)}
	w, worker, _ := newTestWatch(t, &fakeResolver{res: liveResolution()}, supervisor)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Execute(ctx) }()

	// Let the run reach the monitoring stage, then simulate Ctrl+C.
	require.Eventually(t, func() bool {
		supervisor.mu.Lock()
		defer supervisor.mu.Unlock()
		return supervisor.monitoring == 1
	}, time.Second, time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, 1, worker.stopped, "worker must be stopped on shutdown")
	assert.Equal(t, 1, supervisor.shutdownCount())
	close(supervisor.exitCodes)
}

func TestWatchRecorderSelfExitIsAnError(t *testing.T) {
	supervisor := &fakeSupervisor{verifyOK: true, exitCodes: make(chan int, 1)}
	supervisor.exitCodes <- 1
	w, worker, _ := newTestWatch(t, &fakeResolver{res: liveResolution()}, supervisor)

	err := w.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 1")
	assert.Equal(t, 1, worker.stopped)
	assert.Equal(t, 1, supervisor.shutdownCount())
}

func TestWatchVerificationFailure(t *testing.T) {
	supervisor := &fakeSupervisor{verifyOK: false, exitCodes: make(chan int)}
	w, worker, notifier := newTestWatch(t, &fakeResolver{res: liveResolution()}, supervisor)

	err := w.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification failed")

	assert.Equal(t, 1, worker.stopped, "worker must be stopped after failed verification")
	assert.Equal(t, 1, supervisor.shutdownCount())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.events, 1)
	assert.Equal(t, notify.EventRecordingFailed, notifier.events[0].Type)
	assert.Equal(t, notify.SeverityError, notifier.events[0].Severity)
}

func TestWatchResolutionFailure(t *testing.T) {
	supervisor := &fakeSupervisor{}
	w, worker, _ := newTestWatch(t, &fakeResolver{err: stream.ErrAllCandidatesUnreachable}, supervisor)

	err := w.Execute(context.Background())
	require.ErrorIs(t, err, stream.ErrAllCandidatesUnreachable)
	assert.Zero(t, supervisor.started, "recorder must not start without a resolved URL")
	assert.Zero(t, worker.started)
}

func TestWatchRecorderStartFailure(t *testing.T) {
	supervisor := &fakeSupervisor{startErr: errors.New("ffmpeg not found")}
	w, worker, _ := newTestWatch(t, &fakeResolver{res: liveResolution()}, supervisor)

	err := w.Execute(context.Background())
	require.Error(t, err)
	assert.Zero(t, worker.started)
}

func TestWatchWorkerStartFailureStopsRecorder(t *testing.T) {
	supervisor := &fakeSupervisor{verifyOK: true, exitCodes: make(chan int)}
	w, worker, _ := newTestWatch(t, &fakeResolver{res: liveResolution()}, supervisor)
	worker.startErr = errors.New("transcript file not writable")

	err := w.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, supervisor.shutdownCount(), "recorder must be shut down when the worker cannot start")
}

func TestWatchRecordingLayout(t *testing.T) {
	supervisor := &fakeSupervisor{verifyOK: true, exitCodes: make(chan int, 1)}
	supervisor.exitCodes <- 0
	w, worker, _ := newTestWatch(t, &fakeResolver{res: liveResolution()}, supervisor)

	_ = w.Execute(context.Background())

	rec := worker.rec
	assert.Equal(t, "stvp_floor061025", rec.StreamID)
	assert.Equal(t, rec.VideoPath, supervisor.videoPath)
	assert.Equal(t, rec.AudioPath, supervisor.audioPath)
	assert.Equal(t, "https://cdn.test/master.m3u8", supervisor.startURL)
	assert.NotEmpty(t, rec.RunID)
}
