package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

// StepTextExtraction is the log name of the text extraction step.
const StepTextExtraction = "text_extraction"

// ExtractService turns a stored file into plain text. PDFs are read through
// pdftotext so embedded text survives per page; images go through the
// OCR.space API.
type ExtractService struct {
	pdftotextBin string
	ocrEndpoint  string
	httpClient   *http.Client
}

func NewExtractService() *ExtractService {
	bin := os.Getenv("PDFTOTEXT_BIN")
	if bin == "" {
		bin = "pdftotext"
	}
	return &ExtractService{
		pdftotextBin: bin,
		ocrEndpoint:  "https://api.ocr.space/parse/image",
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

// ExtractText converts the byte stream into plain text. Unknown MIME types
// fail with UnsupportedFormat; unreadable input fails with ExtractionError.
// Empty extracted text is not an error.
func (s *ExtractService) ExtractText(ctx context.Context, r io.Reader, mimeType string) (string, error) {
	fileBytes, err := io.ReadAll(r)
	if err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "failed to read input stream", err)
	}
	if len(fileBytes) == 0 {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "input file is empty", nil)
	}

	switch strings.ToLower(mimeType) {
	case "application/pdf":
		return s.extractPDF(ctx, fileBytes)
	case "image/png", "image/jpeg", "image/jpg":
		return s.extractImage(ctx, fileBytes, mimeType)
	default:
		return "", NewStepError(StepTextExtraction, KindUnsupportedFormat,
			fmt.Sprintf("unsupported MIME type %q", mimeType), nil)
	}
}

// extractPDF shells out to pdftotext with UTF-8 output. The tool separates
// pages with form feeds; those are rewritten to newlines so page boundaries
// survive as line breaks.
func (s *ExtractService) extractPDF(ctx context.Context, fileBytes []byte) (string, error) {
	tmp, err := os.CreateTemp("", "docupilot-*.pdf")
	if err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "failed to create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(fileBytes); err != nil {
		tmp.Close()
		return "", NewStepError(StepTextExtraction, KindExtractionError, "failed to write temp file", err)
	}
	tmp.Close()

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	cmd := exec.CommandContext(ctx, s.pdftotextBin, "-layout", "-enc", "UTF-8", "-eol", "unix", tmp.Name(), "-")
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		log.Printf("[ExtractText] pdftotext failed: %v (%s)", err, strings.TrimSpace(errb.String()))
		return "", NewStepError(StepTextExtraction, KindExtractionError,
			"pdftotext could not open the file: "+strings.TrimSpace(errb.String()), err)
	}

	text := strings.ReplaceAll(out.String(), "\f", "\n")
	log.Printf("[ExtractText] extracted %d characters from PDF", len(text))
	return text, nil
}

// extractImage sends the image to OCR.space and returns the parsed text.
func (s *ExtractService) extractImage(ctx context.Context, fileBytes []byte, mimeType string) (string, error) {
	apiKey := strings.TrimSpace(os.Getenv("OCR_SPACE_API_KEY"))
	if apiKey == "" {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "OCR.space API key is not set", nil)
	}

	fileType := "PNG"
	filename := "document.png"
	if mimeType != "image/png" {
		fileType = "JPG"
		filename = "document.jpg"
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	if err := w.WriteField("apikey", apiKey); err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "failed to write apikey field", err)
	}
	if err := w.WriteField("language", "eng"); err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "failed to write language field", err)
	}
	if err := w.WriteField("isOverlayRequired", "false"); err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "failed to write isOverlayRequired field", err)
	}
	if err := w.WriteField("filetype", fileType); err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "failed to write filetype field", err)
	}
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "failed to create form file", err)
	}
	if _, err := fw.Write(fileBytes); err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "failed to write file bytes", err)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ocrEndpoint, &b)
	if err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "failed to create OCR request", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "OCR request failed", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "failed to read OCR response body", err)
	}

	var result struct {
		ErrorMessage  json.RawMessage `json:"ErrorMessage"`
		ParsedResults []struct {
			ParsedText string `json:"ParsedText"`
		} `json:"ParsedResults"`
	}
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return "", NewStepError(StepTextExtraction, KindExtractionError,
			"OCR API error: "+strings.TrimSpace(string(bodyBytes)), err)
	}
	if len(result.ErrorMessage) > 0 && string(result.ErrorMessage) != "null" && string(result.ErrorMessage) != `""` {
		return "", NewStepError(StepTextExtraction, KindExtractionError,
			"OCR.space error: "+strings.Trim(string(result.ErrorMessage), `"`), nil)
	}
	if len(result.ParsedResults) == 0 {
		return "", NewStepError(StepTextExtraction, KindExtractionError, "no OCR results found in response", nil)
	}

	text := result.ParsedResults[0].ParsedText
	log.Printf("[ExtractText] OCR extracted %d characters from %s", len(text), mimeType)
	return text, nil
}
