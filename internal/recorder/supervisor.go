package recorder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	DefaultProbeWindow    = 2 * time.Second
	DefaultGraceTimeout   = 5 * time.Second
	DefaultSampleInterval = 2 * time.Second
	DefaultVerifyTimeout  = 30 * time.Second

	// createWait bounds how long VerifyGrowth waits for the output files to
	// appear before giving up.
	createWait = 10 * time.Second

	// recentLines is the stderr tail kept for start failure reports.
	recentLines = 20
)

// StartError reports a recording process that failed to come up, with the
// captured diagnostic output.
type StartError struct {
	Output string
	Err    error
}

func (e *StartError) Error() string {
	msg := "recorder failed to start"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *StartError) Unwrap() error { return e.Err }

// Handle tracks one running recording process.
type Handle struct {
	VideoPath string
	AudioPath string
	StartedAt time.Time

	cmd     *exec.Cmd
	waitCh  chan struct{}
	waitErr error

	mu     sync.Mutex
	recent []string
}

// Exited reports whether the process has ended.
func (h *Handle) Exited() bool {
	select {
	case <-h.waitCh:
		return true
	default:
		return false
	}
}

// ExitCode returns the process exit code, or -1 while it is still running or
// when the code is unknown.
func (h *Handle) ExitCode() int {
	if !h.Exited() {
		return -1
	}
	if h.waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(h.waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Pid returns the process ID, or 0 for a handle without a process.
func (h *Handle) Pid() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// RecentOutput returns the last captured diagnostic lines.
func (h *Handle) RecentOutput() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return strings.Join(h.recent, "\n")
}

func (h *Handle) appendRecent(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent = append(h.recent, line)
	if len(h.recent) > recentLines {
		h.recent = h.recent[1:]
	}
}

// Supervisor launches and supervises the external recording process. It
// records the stream twice from one input: video by stream copy, audio
// transcoded to MP3 for the transcription worker.
type Supervisor struct {
	FFmpegPath     string
	ProbeWindow    time.Duration
	GraceTimeout   time.Duration
	SampleInterval time.Duration
	Logger         *slog.Logger
}

func NewSupervisor(logger *slog.Logger) *Supervisor {
	return &Supervisor{Logger: logger}
}

// Start probes the stream with a short-lived copy command first, then
// launches the full recording. The returned process outlives ctx; it is
// stopped by Shutdown.
func (s *Supervisor) Start(ctx context.Context, streamURL, videoPath, audioPath string) (*Handle, error) {
	log := s.logger()

	log.Info("probing stream before recording", "url", streamURL)
	if err := s.probeStream(ctx, streamURL, videoPath); err != nil {
		return nil, err
	}

	args := buildRecordArgs(streamURL, videoPath, audioPath)
	log.Info("starting recorder", "command", s.ffmpegPath(), "args", strings.Join(args, " "))

	cmd := exec.Command(s.ffmpegPath(), args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("attaching recorder diagnostics: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.ffmpegPath(), err)
	}

	h := &Handle{
		VideoPath: videoPath,
		AudioPath: audioPath,
		StartedAt: time.Now(),
		cmd:       cmd,
		waitCh:    make(chan struct{}),
	}

	// Single reader goroutine: drains stderr so the process never blocks on
	// a full pipe, then reaps it.
	go func() {
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)
		for scanner.Scan() {
			line := scanner.Text()
			h.appendRecent(line)
			log.Log(context.Background(), classifyLine(line), line, "source", "ffmpeg")
		}
		h.waitErr = cmd.Wait()
		close(h.waitCh)
	}()

	select {
	case <-h.waitCh:
		return nil, &StartError{
			Output: h.RecentOutput(),
			Err:    fmt.Errorf("recorder exited during startup with code %d", h.ExitCode()),
		}
	case <-time.After(s.probeWindow()):
	}

	log.Info("recorder started", "pid", h.Pid())
	return h, nil
}

// probeStream runs a minimal copy command for the probe window. A process
// that exits inside the window means the stream is not recordable.
func (s *Supervisor) probeStream(ctx context.Context, streamURL, videoPath string) error {
	cmd := exec.CommandContext(ctx, s.ffmpegPath(), buildProbeArgs(streamURL, videoPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", s.ffmpegPath(), err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return &StartError{
			Output: stderr.String(),
			Err:    fmt.Errorf("stream probe exited early: %w", errOrExit(err)),
		}
	case <-time.After(s.probeWindow()):
	}

	// Probe is healthy, stop it before the real launch.
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(s.graceTimeout()):
		_ = cmd.Process.Kill()
		<-done
	}

	s.logger().Debug("stream probe completed")
	return nil
}

// VerifyGrowth waits for both output files to appear and then requires both
// to grow across a sampling interval, all within timeout. It returns false
// as soon as the process dies.
func (s *Supervisor) VerifyGrowth(h *Handle, timeout time.Duration) bool {
	log := s.logger()
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	interval := s.sampleInterval()
	deadline := time.Now().Add(timeout)

	log.Info("verifying recording output", "video", h.VideoPath, "audio", h.AudioPath)

	createDeadline := time.Now().Add(createWait)
	if createDeadline.After(deadline) {
		createDeadline = deadline
	}
	for !bothExist(h.VideoPath, h.AudioPath) {
		if h.Exited() {
			log.Error("recorder ended before producing output", "exit_code", h.ExitCode())
			return false
		}
		if !time.Now().Before(createDeadline) {
			s.logMissingOutputs(h)
			return false
		}
		time.Sleep(interval)
	}
	log.Info("output files created")

	videoPrev := fileSize(h.VideoPath)
	audioPrev := fileSize(h.AudioPath)
	for time.Now().Before(deadline) {
		time.Sleep(interval)
		if h.Exited() {
			log.Error("recorder ended during verification", "exit_code", h.ExitCode())
			return false
		}

		videoNow := fileSize(h.VideoPath)
		audioNow := fileSize(h.AudioPath)
		if videoNow > videoPrev && audioNow > audioPrev {
			log.Info("recording verified, both outputs growing",
				"video_bytes", videoNow,
				"audio_bytes", audioNow,
			)
			return true
		}

		log.Debug("waiting for output growth",
			"video_bytes", videoNow,
			"audio_bytes", audioNow,
		)
		videoPrev, audioPrev = videoNow, audioNow
	}

	log.Error("recording verification failed, output not growing",
		"video_bytes", fileSize(h.VideoPath),
		"audio_bytes", fileSize(h.AudioPath),
	)
	return false
}

// MonitorDiagnostics blocks until the recorder process ends and returns its
// exit code. Diagnostic lines are classified and logged as they arrive.
func (s *Supervisor) MonitorDiagnostics(h *Handle) int {
	<-h.waitCh
	code := h.ExitCode()
	s.logger().Info("recorder process ended", "exit_code", code)
	return code
}

// Shutdown stops the recording process, escalating from SIGTERM to SIGKILL
// after the grace timeout, and logs the final output sizes. Calling it again
// after the process ended only repeats the size report.
func (s *Supervisor) Shutdown(h *Handle) error {
	if h == nil {
		return nil
	}
	log := s.logger()

	if h.Exited() {
		s.reportFinalSizes(h)
		return nil
	}

	log.Info("stopping recorder process", "pid", h.Pid())
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Warn("could not signal recorder", "error", err)
	}

	select {
	case <-h.waitCh:
		log.Info("recorder stopped gracefully")
	case <-time.After(s.graceTimeout()):
		log.Warn("recorder did not stop within grace period, killing")
		_ = h.cmd.Process.Kill()
		<-h.waitCh
	}

	s.reportFinalSizes(h)
	return nil
}

func (s *Supervisor) reportFinalSizes(h *Handle) {
	log := s.logger()
	for _, path := range []string{h.VideoPath, h.AudioPath} {
		if info, err := os.Stat(path); err == nil {
			log.Info("final output size", "path", path, "bytes", info.Size())
		}
	}
}

func (s *Supervisor) logMissingOutputs(h *Handle) {
	log := s.logger()
	for _, path := range []string{h.VideoPath, h.AudioPath} {
		if _, err := os.Stat(path); err != nil {
			log.Error("output file was never created", "path", path)
		}
	}
}

// classifyLine maps a diagnostic line to a log level by substring. The match
// is coarse; exit codes remain the authoritative failure signal.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error"):
		return slog.LevelError
	case strings.Contains(lower, "warning"):
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

// buildProbeArgs is the minimal copy command used to test the stream before
// committing to the full recording.
func buildProbeArgs(streamURL, videoPath string) []string {
	return []string{
		"-nostdin",
		"-y",
		"-i", streamURL,
		"-c", "copy",
		videoPath,
	}
}

// buildRecordArgs records the stream into two outputs from one input: video
// by stream copy, audio transcoded to MP3.
func buildRecordArgs(streamURL, videoPath, audioPath string) []string {
	return []string{
		"-nostdin",
		"-y",
		"-i", streamURL,
		"-c:v", "copy",
		videoPath,
		"-c:a", "libmp3lame",
		"-q:a", "2",
		audioPath,
	}
}

func bothExist(paths ...string) bool {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func errOrExit(err error) error {
	if err == nil {
		return errors.New("exit status 0")
	}
	return err
}

func (s *Supervisor) ffmpegPath() string {
	if s.FFmpegPath != "" {
		return s.FFmpegPath
	}
	return "ffmpeg"
}

func (s *Supervisor) probeWindow() time.Duration {
	if s.ProbeWindow > 0 {
		return s.ProbeWindow
	}
	return DefaultProbeWindow
}

func (s *Supervisor) graceTimeout() time.Duration {
	if s.GraceTimeout > 0 {
		return s.GraceTimeout
	}
	return DefaultGraceTimeout
}

func (s *Supervisor) sampleInterval() time.Duration {
	if s.SampleInterval > 0 {
		return s.SampleInterval
	}
	return DefaultSampleInterval
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
