package session

import (
	"path/filepath"
	"testing"
)

func TestNewRecordingLayout(t *testing.T) {
	rec := NewRecording("/var/recordings", "stvp_floor061025", "run1")

	if got, want := rec.VideoPath, filepath.Join("/var/recordings", "stvp_floor061025_video.mp4"); got != want {
		t.Errorf("VideoPath = %q, want %q", got, want)
	}
	if got, want := rec.AudioPath, filepath.Join("/var/recordings", "stvp_floor061025_audio.mp3"); got != want {
		t.Errorf("AudioPath = %q, want %q", got, want)
	}
	if got, want := rec.TranscriptPath, filepath.Join("/var/recordings", "stvp_floor061025_audio.txt"); got != want {
		t.Errorf("TranscriptPath = %q, want %q", got, want)
	}
	if rec.RunID != "run1" || rec.StreamID != "stvp_floor061025" {
		t.Errorf("identifiers = %q/%q", rec.RunID, rec.StreamID)
	}
	if rec.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}
}

func TestTranscriptPath(t *testing.T) {
	tests := []struct {
		audio string
		want  string
	}{
		{"/r/stream_audio.mp3", "/r/stream_audio.txt"},
		{"/r/stream_audio.wav", "/r/stream_audio.txt"},
		{"/r/noext", "/r/noext.txt"},
	}
	for _, tt := range tests {
		if got := TranscriptPath(tt.audio); got != tt.want {
			t.Errorf("TranscriptPath(%q) = %q, want %q", tt.audio, got, tt.want)
		}
	}
}
