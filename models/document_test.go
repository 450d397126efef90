package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidDocumentType(t *testing.T) {
	for _, valid := range []string{"invoice", "contract", "insurance_claim", "receipt", "other"} {
		assert.True(t, ValidDocumentType(valid), valid)
	}
	for _, invalid := range []string{"", "Invoice", "tax_return", "pdf"} {
		assert.False(t, ValidDocumentType(invalid), invalid)
	}
}

func TestProcessingStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusFlagged.Terminal())
}

func TestDocumentBeforeSavePopulatesSearchContent(t *testing.T) {
	doc := &Document{
		OriginalFilename: "invoice.pdf",
		AgentReasoning:   "decision: approve",
	}
	assert.NoError(t, doc.BeforeSave(nil))
	assert.Equal(t, "invoice.pdf decision: approve", doc.SearchContent)
}
