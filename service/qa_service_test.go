package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	model "github.com/docupilot/docupilot/models"
)

func TestQuestionsFor(t *testing.T) {
	tests := []struct {
		docType model.DocumentType
		want    []Question
	}{
		{model.DocTypeInvoice, InvoiceQuestions},
		{model.DocTypeContract, ContractQuestions},
		{model.DocTypeInsuranceClaim, InsuranceClaimQuestions},
		{model.DocTypeReceipt, ReceiptQuestions},
		{model.DocTypeOther, InvoiceQuestions},
	}
	for _, tt := range tests {
		t.Run(string(tt.docType), func(t *testing.T) {
			got := QuestionsFor(tt.docType)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got)
		})
	}
}

func TestQuestionFieldsAreUnique(t *testing.T) {
	for _, set := range [][]Question{
		InvoiceQuestions, ContractQuestions, InsuranceClaimQuestions, ReceiptQuestions,
	} {
		seen := map[string]bool{}
		for _, q := range set {
			assert.False(t, seen[q.Field], q.Field)
			seen[q.Field] = true
			assert.NotEmpty(t, q.Question)
		}
	}
}

func TestExtractFields_EmptyTextReturnsFullFieldSet(t *testing.T) {
	s := NewQAService()

	for _, docType := range []model.DocumentType{
		model.DocTypeInvoice, model.DocTypeContract, model.DocTypeInsuranceClaim, model.DocTypeReceipt,
	} {
		t.Run(string(docType), func(t *testing.T) {
			values, confidences, err := s.ExtractFields(context.Background(), "", docType)
			assert.NoError(t, err)

			questions := QuestionsFor(docType)
			assert.Len(t, values, len(questions))
			assert.Len(t, confidences, len(questions))
			for _, q := range questions {
				v, ok := values[q.Field]
				assert.True(t, ok)
				assert.Empty(t, v)
				assert.Zero(t, confidences[q.Field])
			}
		})
	}
}
