package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText_UnsupportedMIMEType(t *testing.T) {
	s := NewExtractService()

	for _, mime := range []string{"application/msword", "text/html", "application/zip", "video/mp4"} {
		t.Run(mime, func(t *testing.T) {
			_, err := s.ExtractText(context.Background(), strings.NewReader("content"), mime)
			assert.Error(t, err)
			assert.Equal(t, KindUnsupportedFormat, KindOf(err))
			assert.Equal(t, StepTextExtraction, StepOf(err))
		})
	}
}

func TestExtractText_EmptyInput(t *testing.T) {
	s := NewExtractService()

	_, err := s.ExtractText(context.Background(), strings.NewReader(""), "application/pdf")
	assert.Error(t, err)
	assert.Equal(t, KindExtractionError, KindOf(err))
}

func TestExtractText_MIMETypeCaseInsensitive(t *testing.T) {
	s := NewExtractService()

	// uppercase PDF type must not be treated as unsupported
	_, err := s.ExtractText(context.Background(), strings.NewReader("not a pdf"), "Application/PDF")
	if err != nil {
		assert.NotEqual(t, KindUnsupportedFormat, KindOf(err))
	}
}

func TestExtractText_ImageWithoutAPIKeyFails(t *testing.T) {
	t.Setenv("OCR_SPACE_API_KEY", "")
	s := NewExtractService()

	_, err := s.ExtractText(context.Background(), strings.NewReader("png bytes"), "image/png")
	assert.Error(t, err)
	assert.Equal(t, KindExtractionError, KindOf(err))
	assert.Contains(t, err.Error(), "API key")
}
