package services

import (
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Rejection paths run before any storage or database access, so a bare
// service is enough.
func rejectOnlyService(t *testing.T) *DocumentService {
	t.Helper()
	s, err := NewDocumentService(nil, &fakeStorage{}, nil)
	assert.NoError(t, err)
	return s
}

func TestUploadDocument_RejectsInvalidDocumentType(t *testing.T) {
	s := rejectOnlyService(t)

	header := &multipart.FileHeader{Filename: "invoice.pdf", Size: 100}
	_, err := s.UploadDocument("u1", nil, header, "tax_return")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid document type")
}

func TestUploadDocument_RejectsUnsupportedExtension(t *testing.T) {
	s := rejectOnlyService(t)

	for _, name := range []string{"report.docx", "data.csv", "archive.zip", "noextension"} {
		t.Run(name, func(t *testing.T) {
			header := &multipart.FileHeader{Filename: name, Size: 100}
			_, err := s.UploadDocument("u1", nil, header, "invoice")
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "unsupported file type")
		})
	}
}

func TestUploadDocument_RejectsOversizedFile(t *testing.T) {
	s := rejectOnlyService(t)

	header := &multipart.FileHeader{Filename: "big.pdf", Size: s.maxBytes + 1}
	_, err := s.UploadDocument("u1", nil, header, "invoice")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")
}

func TestUploadDocument_ExtensionCaseInsensitive(t *testing.T) {
	s := rejectOnlyService(t)

	// uppercase extension clears the extension check and stops at the size
	// check instead
	header := &multipart.FileHeader{Filename: "SCAN.PDF", Size: s.maxBytes + 1}
	_, err := s.UploadDocument("u1", nil, header, "invoice")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")
}

func TestEnqueue_WithoutBrokerFails(t *testing.T) {
	s := rejectOnlyService(t)
	err := s.Enqueue("doc1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "task broker")
}

func TestExtToMimeCoversSupportedFormats(t *testing.T) {
	assert.Equal(t, "application/pdf", extToMime[".pdf"])
	assert.Equal(t, "image/png", extToMime[".png"])
	assert.Equal(t, "image/jpeg", extToMime[".jpg"])
	assert.Equal(t, "image/jpeg", extToMime[".jpeg"])
}
