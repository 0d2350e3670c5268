package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/lexdesk/internal/config"
)

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Name() string { return "fake" }

func (f *fakeOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractPlainText(t *testing.T) {
	ex := New(nil)
	text, ok := ex.Extract(context.Background(), "claim.txt", "", []byte("Истец требует"))
	require.True(t, ok)
	assert.Equal(t, "Истец требует", text)

	text, ok = ex.Extract(context.Background(), "upload", "text/plain; charset=utf-8", []byte("ab\xffcd"))
	require.True(t, ok)
	assert.Equal(t, "abcd", text)
}

func TestExtractMarkdown(t *testing.T) {
	ex := New(nil)
	src := "# Claim\n\nThe **defendant** failed to pay.\n\n- first\n- second\n"
	text, ok := ex.Extract(context.Background(), "notes.md", "", []byte(src))
	require.True(t, ok)
	assert.Contains(t, text, "Claim")
	assert.Contains(t, text, "The defendant failed to pay.")
	assert.Contains(t, text, "first")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "#")
}

func TestExtractDocx(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Договор</w:t></w:r><w:r><w:t xml:space="preserve"> поставки</w:t></w:r></w:p>
<w:p><w:r><w:t>Section</w:t><w:tab/><w:t>2</w:t></w:r></w:p>
</w:body>
</w:document>`
	ex := New(nil)
	text, ok := ex.Extract(context.Background(), "contract.docx", "", buildDocx(t, body))
	require.True(t, ok)
	assert.Equal(t, "Договор поставки\nSection\t2", text)
}

func TestExtractDocxMissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, ok := New(nil).Extract(context.Background(), "broken.docx", "", buf.Bytes())
	assert.False(t, ok)
}

func TestExtractLegacyDoc(t *testing.T) {
	text, ok := New(nil).Extract(context.Background(), "old.doc", "", []byte{'c', 'a', 'f', 0xe9})
	require.True(t, ok)
	assert.Equal(t, "café", text)
}

func TestExtractInvalidPDF(t *testing.T) {
	_, ok := New(nil).Extract(context.Background(), "scan.pdf", "application/pdf", []byte("not a pdf"))
	assert.False(t, ok)
}

func TestExtractImage(t *testing.T) {
	ocr := &fakeOCR{text: "recognized"}
	text, ok := New(ocr).Extract(context.Background(), "photo.JPG", "", []byte{1, 2, 3})
	require.True(t, ok)
	assert.Equal(t, "recognized", text)
	assert.Equal(t, 1, ocr.calls)

	ocr = &fakeOCR{err: errors.New("boom")}
	_, ok = New(ocr).Extract(context.Background(), "scan", "image/png", []byte{1})
	assert.False(t, ok)
}

func TestExtractImageWithoutEngine(t *testing.T) {
	_, ok := New(nil).Extract(context.Background(), "photo.png", "", []byte{1})
	assert.False(t, ok)

	ocr := NewTesseract("/nonexistent/tesseract-bin", "")
	_, err := ocr.Recognize(context.Background(), []byte{1})
	require.ErrorIs(t, err, ErrOCRUnavailable)
	_, ok = New(ocr).Extract(context.Background(), "photo.png", "", []byte{1})
	assert.False(t, ok)
}

func TestExtractUnknownFallsBackToUTF8(t *testing.T) {
	text, ok := New(nil).Extract(context.Background(), "data.bin", "application/octet-stream", []byte("plain"))
	require.True(t, ok)
	assert.Equal(t, "plain", text)
}

func TestNewOCR(t *testing.T) {
	ocr, err := NewOCR(context.Background(), config.ExtractConfig{OCR: "none"})
	require.NoError(t, err)
	assert.Nil(t, ocr)

	ocr, err = NewOCR(context.Background(), config.ExtractConfig{OCR: "tesseract"})
	require.NoError(t, err)
	assert.Equal(t, "tesseract", ocr.Name())

	_, err = NewOCR(context.Background(), config.ExtractConfig{OCR: "abbyy"})
	require.Error(t, err)
}

func TestLanguageHints(t *testing.T) {
	assert.Equal(t, []string{"ru", "en"}, languageHints("rus+eng"))
	assert.Nil(t, languageHints(""))
}
