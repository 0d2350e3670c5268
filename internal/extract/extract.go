package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Extractor turns uploaded bytes into plain text. It never fails: when a
// format cannot be read it logs a warning and reports ok=false.
type Extractor interface {
	Extract(ctx context.Context, fileName, mimeType string, data []byte) (string, bool)
}

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var imageSuffixes = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".tiff": {}, ".tif": {}, ".bmp": {}, ".gif": {}, ".webp": {},
}

type extractor struct {
	ocr OCR
}

// New returns the upload extractor. ocr may be nil, images then yield no text.
func New(ocr OCR) Extractor {
	return &extractor{ocr: ocr}
}

func (e *extractor) Extract(ctx context.Context, fileName, mimeType string, data []byte) (text string, ok bool) {
	logger := logutil.GetLogger(ctx).With(zap.String("file_name", fileName), zap.String("mime", mimeType))
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("extract text panic", zap.Any("panic", r))
			text, ok = "", false
		}
	}()
	out, err := e.extract(ctx, fileName, mimeType, data)
	if err != nil {
		logger.Warn("extract text failed", zap.Error(err))
		return "", false
	}
	return out, true
}

func (e *extractor) extract(ctx context.Context, fileName, mimeType string, data []byte) (string, error) {
	suffix := strings.ToLower(filepath.Ext(fileName))
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	switch {
	case suffix == ".md" || suffix == ".markdown" || mime == "text/markdown":
		return markdownText(data), nil
	case suffix == ".txt" || strings.HasPrefix(mime, "text/"):
		return decodeUTF8(data), nil
	case suffix == ".pdf" || mime == mimePDF:
		return pdfText(data)
	case suffix == ".docx" || mime == mimeDOCX:
		return docxText(data)
	case suffix == ".doc":
		return decodeLatin1(data)
	case isImage(suffix, mime):
		if e.ocr == nil {
			return "", ErrOCRUnavailable
		}
		out, err := e.ocr.Recognize(ctx, data)
		if err != nil {
			return "", fmt.Errorf("ocr via %s: %w", e.ocr.Name(), err)
		}
		return out, nil
	default:
		return decodeUTF8(data), nil
	}
}

func isImage(suffix, mime string) bool {
	if strings.HasPrefix(mime, "image/") {
		return true
	}
	_, ok := imageSuffixes[suffix]
	return ok
}
