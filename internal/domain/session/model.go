// Package session holds the domain model for one watched Senate session.
package session

import (
	"path/filepath"
	"time"
)

// Recording describes the output files of one watch run. The transcript path
// is derived from the audio path so the pair always travels together.
type Recording struct {
	RunID          string
	StreamID       string
	VideoPath      string
	AudioPath      string
	TranscriptPath string
	StartedAt      time.Time
}

// NewRecording derives the output file layout for a stream:
// <dir>/<streamID>_video.mp4, <dir>/<streamID>_audio.mp3 and the transcript
// next to the audio with a .txt extension.
func NewRecording(recordingsDir, streamID, runID string) Recording {
	audioPath := filepath.Join(recordingsDir, streamID+"_audio.mp3")
	return Recording{
		RunID:          runID,
		StreamID:       streamID,
		VideoPath:      filepath.Join(recordingsDir, streamID+"_video.mp4"),
		AudioPath:      audioPath,
		TranscriptPath: TranscriptPath(audioPath),
		StartedAt:      time.Now(),
	}
}

// TranscriptPath maps an audio file path to its transcript path.
func TranscriptPath(audioPath string) string {
	ext := filepath.Ext(audioPath)
	return audioPath[:len(audioPath)-len(ext)] + ".txt"
}
