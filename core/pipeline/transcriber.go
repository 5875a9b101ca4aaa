package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/siherrmann/memories/model"
)

type (
	whisperXResult struct {
		Segments []whisperXSegment `json:"segments"`
	}

	whisperXSegment struct {
		Text    string           `json:"text"`
		Start   *decimal.Decimal `json:"start"`
		End     *decimal.Decimal `json:"end"`
		Speaker string           `json:"speaker"`
	}
)

// WhisperXTranscriber transcribes audio with the whisperx command line tool,
// aligned and diarized, and reads back its JSON output.
type WhisperXTranscriber struct {
	Binary    string
	Model     string
	Language  string
	OutputDir string
	Logger    *slog.Logger
}

// NewWhisperXTranscriber creates a transcriber for Dutch interviews.
func NewWhisperXTranscriber(outputDir string, logger *slog.Logger) *WhisperXTranscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &WhisperXTranscriber{
		Binary:    "whisperx",
		Model:     "large-v2",
		Language:  "nl",
		OutputDir: outputDir,
		Logger:    logger,
	}
}

// Transcribe runs whisperx on the audio file and returns its diarized segments
func (w *WhisperXTranscriber) Transcribe(ctx context.Context, audioPath string) ([]model.WordUnit, error) {
	outputDir := w.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(audioPath)
	}

	// #nosec G204 -- binary and arguments come from the transcriber configuration
	cmd := exec.CommandContext(ctx, w.Binary, audioPath,
		"--model", w.Model,
		"--language", w.Language,
		"--diarize",
		"--output_format", "json",
		"--output_dir", outputDir,
	)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("transcribing with whisperx: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("transcribing with whisperx: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("transcribing with whisperx: %w", err)
	}

	var wg sync.WaitGroup
	for _, r := range []io.Reader{stderr, stdout} {
		wg.Add(1)
		go func(r io.Reader) {
			defer wg.Done()
			scanner := bufio.NewScanner(r)
			for scanner.Scan() {
				w.Logger.Debug("whisperx", slog.String("output", scanner.Text()))
			}
		}(r)
	}
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("transcribing with whisperx: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	resultPath := filepath.Join(outputDir, base+".json")
	f, err := os.Open(filepath.Clean(resultPath))
	if err != nil {
		return nil, fmt.Errorf("opening whisperx transcribe result: %w", err)
	}
	defer f.Close()

	return DecodeWhisperX(f)
}

// DecodeWhisperX decodes whisperx JSON output into word units.
// Segments without start or end are skipped.
func DecodeWhisperX(r io.Reader) ([]model.WordUnit, error) {
	var result whisperXResult
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding whisperx json result: %w", err)
	}

	units := make([]model.WordUnit, 0, len(result.Segments))
	for _, s := range result.Segments {
		if s.Start == nil || s.End == nil {
			continue
		}
		units = append(units, model.WordUnit{
			Start:   s.Start.Round(3).InexactFloat64(),
			End:     s.End.Round(3).InexactFloat64(),
			Text:    strings.TrimSpace(s.Text),
			Speaker: s.Speaker,
		})
	}
	return units, nil
}
