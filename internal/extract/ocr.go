package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/xxxsen/lexdesk/internal/config"
)

var ErrOCRUnavailable = errors.New("ocr engine unavailable")

type OCR interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (string, error)
}

// NewOCR builds the engine named by cfg.OCR. "none" disables image text.
func NewOCR(ctx context.Context, cfg config.ExtractConfig) (OCR, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.OCR)) {
	case "", "tesseract":
		return NewTesseract(cfg.TesseractPath, cfg.OCRLanguages), nil
	case "vision":
		return NewVision(ctx, cfg.VisionCredentials, cfg.OCRLanguages)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported ocr engine: %s", cfg.OCR)
	}
}

type tesseract struct {
	bin       string
	languages string
}

func NewTesseract(bin, languages string) OCR {
	if bin == "" {
		bin = "tesseract"
	}
	if languages == "" {
		languages = "rus+eng"
	}
	return &tesseract{bin: bin, languages: languages}
}

func (t *tesseract) Name() string {
	return "tesseract"
}

// Recognize pipes the image through the tesseract CLI.
func (t *tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	path, err := exec.LookPath(t.bin)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found", ErrOCRUnavailable, t.bin)
	}
	cmd := exec.CommandContext(ctx, path, "stdin", "stdout", "-l", t.languages)
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
