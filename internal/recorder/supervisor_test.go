package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustWriteScript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestBuildProbeArgs(t *testing.T) {
	got := buildProbeArgs("https://cdn.test/master.m3u8", "/tmp/out_video.mp4")
	want := []string{
		"-nostdin",
		"-y",
		"-i", "https://cdn.test/master.m3u8",
		"-c", "copy",
		"/tmp/out_video.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildProbeArgs() = %v, want %v", got, want)
	}
}

func TestBuildRecordArgs(t *testing.T) {
	got := buildRecordArgs("https://cdn.test/master.m3u8", "/tmp/out_video.mp4", "/tmp/out_audio.mp3")
	want := []string{
		"-nostdin",
		"-y",
		"-i", "https://cdn.test/master.m3u8",
		"-c:v", "copy",
		"/tmp/out_video.mp4",
		"-c:a", "libmp3lame",
		"-q:a", "2",
		"/tmp/out_audio.mp3",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildRecordArgs() = %v, want %v", got, want)
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want slog.Level
	}{
		{"Error while decoding stream #0:1", slog.LevelError},
		{"[https @ 0x7f] HTTP error 404 Not Found", slog.LevelError},
		{"deprecated pixel format used, make sure you did set range correctly (warning)", slog.LevelWarn},
		{"frame= 1024 fps= 30 q=-1.0 size= 2048kB", slog.LevelDebug},
		{"Stream mapping:", slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := classifyLine(tt.line); got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestStartFailsWhenProbeExits(t *testing.T) {
	dir := t.TempDir()
	script := mustWriteScript(t, dir, "ffmpeg-fail.sh", "#!/bin/sh\necho 'Connection refused' >&2\nexit 1\n")

	s := &Supervisor{
		FFmpegPath:  script,
		ProbeWindow: 100 * time.Millisecond,
		Logger:      testLogger(),
	}

	_, err := s.Start(context.Background(), "https://cdn.test/master.m3u8",
		filepath.Join(dir, "video.mp4"), filepath.Join(dir, "audio.mp3"))

	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Start() error = %v, want StartError", err)
	}
	if !strings.Contains(startErr.Output, "Connection refused") {
		t.Errorf("StartError.Output = %q, want captured stderr", startErr.Output)
	}
}

func TestStartAndShutdown(t *testing.T) {
	dir := t.TempDir()
	script := mustWriteScript(t, dir, "ffmpeg-run.sh", "#!/bin/sh\nsleep 30\n")

	s := &Supervisor{
		FFmpegPath:   script,
		ProbeWindow:  50 * time.Millisecond,
		GraceTimeout: 2 * time.Second,
		Logger:       testLogger(),
	}

	h, err := s.Start(context.Background(), "https://cdn.test/master.m3u8",
		filepath.Join(dir, "video.mp4"), filepath.Join(dir, "audio.mp3"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if h.Exited() {
		t.Fatal("process exited right after start")
	}
	if h.Pid() == 0 {
		t.Error("Pid() = 0 for running process")
	}

	if err := s.Shutdown(h); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !h.Exited() {
		t.Error("process still running after Shutdown")
	}

	// Second shutdown is a no-op.
	if err := s.Shutdown(h); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}

func TestMonitorDiagnosticsReturnsExitCode(t *testing.T) {
	dir := t.TempDir()
	script := mustWriteScript(t, dir, "ffmpeg-exit.sh", "#!/bin/sh\nsleep 0.3\nexit 3\n")

	s := &Supervisor{
		FFmpegPath:  script,
		ProbeWindow: 100 * time.Millisecond,
		Logger:      testLogger(),
	}

	h, err := s.Start(context.Background(), "https://cdn.test/master.m3u8",
		filepath.Join(dir, "video.mp4"), filepath.Join(dir, "audio.mp3"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if code := s.MonitorDiagnostics(h); code != 3 {
		t.Errorf("MonitorDiagnostics() = %d, want 3", code)
	}
	if code := h.ExitCode(); code != 3 {
		t.Errorf("ExitCode() = %d, want 3", code)
	}
}

func TestVerifyGrowthSucceeds(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "video.mp4")
	audioPath := filepath.Join(dir, "audio.mp3")
	h := &Handle{VideoPath: videoPath, AudioPath: audioPath, waitCh: make(chan struct{})}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				_ = appendBytes(videoPath, 512)
				_ = appendBytes(audioPath, 128)
			}
		}
	}()

	s := &Supervisor{SampleInterval: 20 * time.Millisecond, Logger: testLogger()}
	if !s.VerifyGrowth(h, 2*time.Second) {
		t.Error("VerifyGrowth() = false for growing files")
	}
}

func TestVerifyGrowthFailsWhenStalled(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "video.mp4")
	audioPath := filepath.Join(dir, "audio.mp3")
	if err := appendBytes(videoPath, 512); err != nil {
		t.Fatal(err)
	}
	if err := appendBytes(audioPath, 128); err != nil {
		t.Fatal(err)
	}

	h := &Handle{VideoPath: videoPath, AudioPath: audioPath, waitCh: make(chan struct{})}
	s := &Supervisor{SampleInterval: 20 * time.Millisecond, Logger: testLogger()}

	if s.VerifyGrowth(h, 200*time.Millisecond) {
		t.Error("VerifyGrowth() = true for stalled files")
	}
}

func TestVerifyGrowthFailsWhenFilesNeverAppear(t *testing.T) {
	dir := t.TempDir()
	h := &Handle{
		VideoPath: filepath.Join(dir, "video.mp4"),
		AudioPath: filepath.Join(dir, "audio.mp3"),
		waitCh:    make(chan struct{}),
	}
	s := &Supervisor{SampleInterval: 20 * time.Millisecond, Logger: testLogger()}

	if s.VerifyGrowth(h, 200*time.Millisecond) {
		t.Error("VerifyGrowth() = true for missing files")
	}
}

func TestVerifyGrowthFailsWhenProcessDied(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "video.mp4")
	audioPath := filepath.Join(dir, "audio.mp3")
	if err := appendBytes(videoPath, 512); err != nil {
		t.Fatal(err)
	}
	if err := appendBytes(audioPath, 128); err != nil {
		t.Fatal(err)
	}

	h := &Handle{VideoPath: videoPath, AudioPath: audioPath, waitCh: make(chan struct{})}
	close(h.waitCh)

	s := &Supervisor{SampleInterval: 20 * time.Millisecond, Logger: testLogger()}
	if s.VerifyGrowth(h, time.Second) {
		t.Error("VerifyGrowth() = true after process death")
	}
}

func appendBytes(path string, n int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(make([]byte, n))
	return err
}
