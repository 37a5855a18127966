package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// WhisperCLI transcribes audio by running a local whisper.cpp binary.
type WhisperCLI struct {
	Bin       string
	ModelPath string
	Logger    *slog.Logger

	runner commandRunner
}

func NewWhisperCLI(bin, modelPath string, logger *slog.Logger) *WhisperCLI {
	return &WhisperCLI{
		Bin:       bin,
		ModelPath: modelPath,
		Logger:    logger,
		runner:    &execRunner{},
	}
}

// Transcribe runs the whisper binary against audioPath, reads the exported
// .txt artifact, and removes it.
func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath, prompt string) (string, error) {
	if w.ModelPath == "" {
		return "", fmt.Errorf("whisper model path not set: add whisper_model to config")
	}
	if _, err := os.Stat(w.ModelPath); err != nil {
		return "", fmt.Errorf("cannot access whisper model: %s", w.ModelPath)
	}

	outBase := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	args := buildWhisperArgs(w.ModelPath, audioPath, outBase, prompt)

	result, err := w.run(ctx, args)
	if err != nil {
		return "", fmt.Errorf("whisper transcription failed (exit %d): %w: %s",
			result.ExitCode, err, strings.TrimSpace(result.Stderr))
	}

	textPath := outBase + ".txt"
	content, err := os.ReadFile(textPath)
	if err != nil {
		return "", fmt.Errorf("whisper completed but transcript file is missing: %w", err)
	}
	_ = os.Remove(textPath)

	return strings.TrimSpace(string(content)), nil
}

func (w *WhisperCLI) run(ctx context.Context, args []string) (commandResult, error) {
	runner := w.runner
	if runner == nil {
		runner = &execRunner{}
	}
	if w.Logger != nil {
		w.Logger.Debug("running whisper", "command", w.bin(), "args", strings.Join(args, " "))
	}
	return runner.Run(ctx, w.bin(), args...)
}

func (w *WhisperCLI) bin() string {
	if w.Bin != "" {
		return w.Bin
	}
	return "whisper-cli"
}

// buildWhisperArgs builds whisper.cpp args for txt transcript export.
func buildWhisperArgs(modelPath, audioPath, outBase, prompt string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-otxt",
		"-np",
	}

	if prompt != "" {
		args = append(args, "--prompt", prompt)
	}

	return args
}
