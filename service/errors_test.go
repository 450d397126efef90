package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStepError(StepValidation, KindValidationLookupError, "failed to read vendor reference table", cause)

	assert.Equal(t, "ValidationLookupError: failed to read vendor reference table: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindValidationLookupError, KindOf(err))
	assert.Equal(t, StepValidation, StepOf(err))

	// no cause leaves the trailing segment off
	bare := NewStepError(StepTextExtraction, KindUnsupportedFormat, `unsupported MIME type "text/html"`, nil)
	assert.Equal(t, `UnsupportedFormat: unsupported MIME type "text/html"`, bare.Error())
}

func TestKindOf_WrappedError(t *testing.T) {
	inner := NewStepError(StepFieldExtraction, KindModelUnavailable, "inference failed for field total_amount", nil)
	wrapped := fmt.Errorf("processing document doc1: %w", inner)

	assert.Equal(t, KindModelUnavailable, KindOf(wrapped))
	assert.Equal(t, StepFieldExtraction, StepOf(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, "", StepOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}
