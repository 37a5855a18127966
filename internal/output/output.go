package output

import (
	"fmt"
	"io"
	"time"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) ResolvedStream(streamID, url string) {
	fmt.Fprintf(f.w, "🎥 Live stream found: %s\n   %s\n", streamID, url)
}

func (f *Formatter) CandidateStatus(index int, url string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(f.w, "  ✅ candidate %d: %s\n", index, url)
	} else {
		fmt.Fprintf(f.w, "  ❌ candidate %d: %s (%s)\n", index, url, detail)
	}
}

func (f *Formatter) RecordingStarted(videoPath, audioPath string) {
	fmt.Fprintf(f.w, "⏺️  Recording started\n   video: %s\n   audio: %s\n", videoPath, audioPath)
}

func (f *Formatter) CleanupSummary(duration time.Duration, videoBytes, audioBytes int64) {
	fmt.Fprintf(f.w, "\n⏹️  Recording stopped (%s)\n", formatDuration(duration))
	fmt.Fprintf(f.w, "   video: %.1fMB\n", float64(videoBytes)/(1024*1024))
	fmt.Fprintf(f.w, "   audio: %.1fMB\n", float64(audioBytes)/(1024*1024))
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(f.w, "  ✅ %s: %s\n", name, detail)
	} else {
		fmt.Fprintf(f.w, "  ❌ %s: %s\n", name, detail)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
