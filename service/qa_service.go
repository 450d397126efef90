package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	model "github.com/docupilot/docupilot/models"
)

// StepFieldExtraction is the log name of the field extraction step.
const StepFieldExtraction = "field_extraction"

// Question pairs a field name with the natural-language question used to
// extract it. Order matters: extraction output preserves question order.
type Question struct {
	Field    string
	Question string
}

// Per-document-type question sets. A type with no set of its own falls back
// to the invoice questions.
var (
	InvoiceQuestions = []Question{
		{"invoice_number", "What is the invoice number?"},
		{"invoice_date", "What is the invoice date?"},
		{"total_amount", "What is the total amount?"},
		{"vendor_name", "What is the vendor name?"},
		{"due_date", "What is the due date?"},
		{"tax_amount", "What is the tax amount?"},
	}
	ContractQuestions = []Question{
		{"contract_number", "What is the contract number?"},
		{"contract_date", "What is the contract date?"},
		{"contract_value", "What is the contract value?"},
		{"parties", "Who are the parties involved?"},
		{"effective_date", "What is the effective date?"},
		{"termination_date", "What is the termination date?"},
	}
	InsuranceClaimQuestions = []Question{
		{"claim_number", "What is the claim number?"},
		{"claim_date", "What is the claim date?"},
		{"claim_amount", "What is the claim amount?"},
		{"policy_number", "What is the policy number?"},
		{"claimant_name", "What is the claimant name?"},
		{"incident_date", "What is the incident date?"},
	}
	ReceiptQuestions = []Question{
		{"merchant_name", "What is the merchant name?"},
		{"receipt_date", "What is the receipt date?"},
		{"total_amount", "What is the total amount?"},
		{"payment_method", "What is the payment method?"},
	}
)

// QuestionsFor returns the ordered question set for a document type.
func QuestionsFor(docType model.DocumentType) []Question {
	switch docType {
	case model.DocTypeContract:
		return ContractQuestions
	case model.DocTypeInsuranceClaim:
		return InsuranceClaimQuestions
	case model.DocTypeReceipt:
		return ReceiptQuestions
	default:
		return InvoiceQuestions
	}
}

// QAService extracts fields from document text with a hosted
// question-answering model.
type QAService struct {
	endpoint   string
	apiToken   string
	httpClient *http.Client
}

func NewQAService() *QAService {
	modelName := os.Getenv("HF_QA_MODEL")
	if modelName == "" {
		modelName = "distilbert-base-cased-distilled-squad"
	}
	return &QAService{
		endpoint:   "https://api-inference.huggingface.co/models/" + modelName,
		apiToken:   os.Getenv("HF_API_TOKEN"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// ExtractFields answers every configured question for the document type
// against the text. The returned maps always have one entry per question;
// fields the model cannot answer appear with an empty value and confidence 0.
// Inference failures surface as ModelUnavailable and are not retried here
// beyond a short transport retry; a fresh run is the dispatcher's concern.
func (s *QAService) ExtractFields(ctx context.Context, text string, docType model.DocumentType) (map[string]string, map[string]float64, error) {
	questions := QuestionsFor(docType)
	values := make(map[string]string, len(questions))
	confidences := make(map[string]float64, len(questions))

	// Empty text still yields the full field set, all at confidence 0, and
	// never hits the model.
	if text == "" {
		for _, q := range questions {
			values[q.Field] = ""
			confidences[q.Field] = 0
		}
		log.Printf("[ExtractFields] empty text, returning %d empty fields", len(questions))
		return values, confidences, nil
	}

	for _, q := range questions {
		answer, score, err := s.answer(ctx, q.Question, text)
		if err != nil {
			return nil, nil, NewStepError(StepFieldExtraction, KindModelUnavailable,
				fmt.Sprintf("inference failed for field %s", q.Field), err)
		}
		values[q.Field] = answer
		confidences[q.Field] = score
		log.Printf("[ExtractFields] %s=%q (confidence %.3f)", q.Field, answer, score)
	}

	return values, confidences, nil
}

// answer runs one question-answering call against the inference API.
func (s *QAService) answer(ctx context.Context, question, context_ string) (string, float64, error) {
	reqBody, err := json.Marshal(map[string]interface{}{
		"inputs": map[string]string{
			"question": question,
			"context":  context_,
		},
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request body: %w", err)
	}

	const maxRetries = 3
	var resp *http.Response
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return "", 0, fmt.Errorf("failed to create inference request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if s.apiToken != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiToken)
		}

		resp, err = s.httpClient.Do(req)
		if err == nil && resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
			break
		}
		if err != nil {
			log.Printf("[ExtractFields] inference request failed (attempt %d): %v", attempt+1, err)
		} else {
			log.Printf("[ExtractFields] inference busy (attempt %d), status: %s", attempt+1, resp.Status)
			resp.Body.Close()
			resp = nil
		}
		if attempt < maxRetries-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * 2 * time.Second):
			case <-ctx.Done():
				return "", 0, ctx.Err()
			}
		} else if err != nil {
			return "", 0, err
		}
	}
	if resp == nil {
		return "", 0, fmt.Errorf("inference API unavailable after %d attempts", maxRetries)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("non-200 status code: %d, response: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Answer string  `json:"answer"`
		Score  float64 `json:"score"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", 0, fmt.Errorf("failed to parse inference response: %w", err)
	}

	return result.Answer, result.Score, nil
}
