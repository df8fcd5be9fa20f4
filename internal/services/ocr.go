package services

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// TextExtractor pulls raw text from a screenshot. Confidence is retained
// for diagnostics but never gates verification; -1 means unknown.
type TextExtractor interface {
	Extract(ctx context.Context, imagePath string) (text string, confidence float64, err error)
}

// TesseractExtractor shells out to the tesseract binary. The context bounds
// the run time; a killed or missing binary surfaces as an extraction error,
// which the verifier treats as a failed OCR match rather than a fatal error.
type TesseractExtractor struct {
	Binary string
}

func NewTesseractExtractor(binary string) *TesseractExtractor {
	if binary == "" {
		binary = "tesseract"
	}
	return &TesseractExtractor{Binary: binary}
}

func (e *TesseractExtractor) Extract(ctx context.Context, imagePath string) (string, float64, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Binary, imagePath, "stdout")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", -1, err
	}

	confidence := -1.0
	// A second pass with tsv output would give word confidences; the mean
	// confidence is informational only, so its absence is fine.
	if conf, err := e.meanConfidence(ctx, imagePath); err == nil {
		confidence = conf
	}
	return out.String(), confidence, nil
}

func (e *TesseractExtractor) meanConfidence(ctx context.Context, imagePath string) (float64, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Binary, imagePath, "stdout", "tsv")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return -1, err
	}

	var sum float64
	var n int
	for _, line := range strings.Split(out.String(), "\n")[1:] {
		fields := strings.Split(line, "\t")
		if len(fields) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		sum += conf
		n++
	}
	if n == 0 {
		return -1, nil
	}
	return sum / float64(n), nil
}
