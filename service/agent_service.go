package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"

	model "github.com/docupilot/docupilot/models"
)

// StepDocumentLoading is the log name of the storage fetch step.
const StepDocumentLoading = "document_loading"

// failPersistTimeout bounds the writes that record a failed run. These run
// under their own deadline because the run's context may already be expired.
const failPersistTimeout = 30 * time.Second

// Tool interfaces the orchestrator drives. Concrete services satisfy them;
// tests inject fakes.
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, mimeType string) (string, error)
}

type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string, docType model.DocumentType) (map[string]string, map[string]float64, error)
}

type EntityValidator interface {
	ValidateEntities(ctx context.Context, entities []*model.ExtractedEntity) (string, error)
}

type DecisionEngine interface {
	Evaluate(ctx context.Context, docType model.DocumentType, in RuleInput) (model.WorkflowAction, string, error)
}

type Notifier interface {
	Notify(ctx context.Context, doc *model.Document, action model.WorkflowAction, recipient string) error
}

// Indexer mirrors the document into the search index after a run. Best effort.
type Indexer interface {
	IndexDocument(doc *model.Document) error
}

// DocumentStore is the persistence surface the orchestrator needs. Log rows
// are append-only; entities are replaced wholesale at the start of a run so
// an at-least-once redelivery never double-counts them.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	SaveDocument(ctx context.Context, doc *model.Document) error
	GetUserEmail(ctx context.Context, userID string) (string, error)
	DeleteEntities(ctx context.Context, documentID string) error
	CreateEntities(ctx context.Context, entities []*model.ExtractedEntity) error
	SaveEntities(ctx context.Context, entities []*model.ExtractedEntity) error
	AppendLog(ctx context.Context, entry *model.ProcessingLog) error
}

// AgentService sequences the pipeline over one document: text extraction,
// field extraction, validation, rule evaluation and best-effort notification,
// accumulating a reasoning trace and an append-only step log as it goes.
type AgentService struct {
	store     DocumentStore
	storage   ObjectStorage
	extractor TextExtractor
	fields    FieldExtractor
	validator EntityValidator
	rules     DecisionEngine
	notifier  Notifier
	indexer   Indexer // optional
}

func NewAgentService(store DocumentStore, storage ObjectStorage, extractor TextExtractor,
	fields FieldExtractor, validator EntityValidator, rules DecisionEngine,
	notifier Notifier, indexer Indexer) *AgentService {
	return &AgentService{
		store:     store,
		storage:   storage,
		extractor: extractor,
		fields:    fields,
		validator: validator,
		rules:     rules,
		notifier:  notifier,
		indexer:   indexer,
	}
}

// ProcessDocument runs the pipeline for one document. Redelivery of a
// document already in a terminal state is a logged no-op; a document stuck in
// processing (a crashed prior run) is restarted from scratch. Any fatal step
// error transitions the document to failed with the error message and the
// partial log preserved.
func (a *AgentService) ProcessDocument(ctx context.Context, documentID string) error {
	started := time.Now()

	doc, err := a.store.GetDocument(ctx, documentID)
	if err != nil {
		log.Printf("[ProcessDocument] document %s not found: %v", documentID, err)
		return fmt.Errorf("document %s not found: %w", documentID, err)
	}

	if doc.Status.Terminal() {
		log.Printf("[ProcessDocument] document %s already %s, skipping redelivery", doc.ID, doc.Status)
		return nil
	}
	if doc.Status == model.StatusProcessing {
		log.Printf("[ProcessDocument] document %s redelivered while processing, restarting run", doc.ID)
	}

	doc.Status = model.StatusProcessing
	doc.ErrorMessage = ""
	if err := a.store.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to mark document %s processing: %w", doc.ID, err)
	}
	// a redelivered run must not duplicate entity rows
	if err := a.store.DeleteEntities(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to clear stale entities for %s: %w", doc.ID, err)
	}

	var trace []string

	// Step 1: fetch the stored file
	stepStart := time.Now()
	body, err := a.storage.Get(doc.FilePath)
	if err != nil {
		return a.failRun(ctx, doc, trace, started,
			NewStepError(StepDocumentLoading, KindExtractionError, "failed to fetch file from storage", err), stepStart)
	}
	a.logStep(ctx, doc.ID, StepDocumentLoading, model.StepCompleted,
		fmt.Sprintf("fetched %s", doc.FilePath), stepStart)
	trace = append(trace, fmt.Sprintf("[%s] fetched %s from storage", StepDocumentLoading, doc.FilePath))

	// Step 2: text extraction
	stepStart = time.Now()
	text, err := a.extractor.ExtractText(ctx, body, doc.MimeType)
	body.Close()
	if err != nil {
		return a.failRun(ctx, doc, trace, started, err, stepStart)
	}
	a.logStep(ctx, doc.ID, StepTextExtraction, model.StepCompleted,
		fmt.Sprintf("extracted %d characters", len(text)), stepStart)
	trace = append(trace, fmt.Sprintf("[%s] extracted %d characters from %s", StepTextExtraction, len(text), doc.MimeType))

	// Step 3: field extraction
	stepStart = time.Now()
	values, confidences, err := a.fields.ExtractFields(ctx, text, doc.DocumentType)
	if err != nil {
		return a.failRun(ctx, doc, trace, started, err, stepStart)
	}
	entities := entitiesFromExtraction(doc.ID, doc.DocumentType, values, confidences)
	if err := a.store.CreateEntities(ctx, entities); err != nil {
		return a.failRun(ctx, doc, trace, started,
			NewStepError(StepFieldExtraction, KindValidationLookupError, "database write failed persisting extracted entities", err), stepStart)
	}
	a.logStep(ctx, doc.ID, StepFieldExtraction, model.StepCompleted,
		fmt.Sprintf("extracted %d fields", len(values)), stepStart)
	trace = append(trace, fmt.Sprintf("[%s] %s", StepFieldExtraction, describeExtraction(doc.DocumentType, values, confidences)))

	// Step 4: validation
	stepStart = time.Now()
	validationRationale, err := a.validator.ValidateEntities(ctx, entities)
	if err != nil {
		return a.failRun(ctx, doc, trace, started, err, stepStart)
	}
	if err := a.store.SaveEntities(ctx, entities); err != nil {
		return a.failRun(ctx, doc, trace, started,
			NewStepError(StepValidation, KindValidationLookupError, "database write failed persisting validation results", err), stepStart)
	}
	a.logStep(ctx, doc.ID, StepValidation, model.StepCompleted, validationRationale, stepStart)
	trace = append(trace, fmt.Sprintf("[%s] %s", StepValidation, validationRationale))

	// Step 5: rule evaluation
	stepStart = time.Now()
	action, ruleTrace, err := a.rules.Evaluate(ctx, doc.DocumentType, RuleInput{
		Fields:      values,
		Confidences: confidences,
		Entities:    entities,
	})
	if err != nil {
		return a.failRun(ctx, doc, trace, started,
			NewStepError(StepRuleEvaluation, KindValidationLookupError, "database read failed fetching processing rules", err), stepStart)
	}
	a.logStep(ctx, doc.ID, StepRuleEvaluation, model.StepCompleted, ruleTrace, stepStart)
	trace = append(trace, fmt.Sprintf("[%s] %s", StepRuleEvaluation, ruleTrace))

	// Step 6: notification, best effort. A failure here is logged and traced
	// but never changes the document's status or action.
	stepStart = time.Now()
	recipient, lookupErr := a.store.GetUserEmail(ctx, doc.UserID)
	if lookupErr != nil {
		recipient = ""
	}
	if nerr := a.notifier.Notify(ctx, doc, action, recipient); nerr != nil {
		a.logStep(ctx, doc.ID, StepNotification, model.StepFailed, nerr.Error(), stepStart)
		trace = append(trace, fmt.Sprintf("[%s] failed: %s", StepNotification, nerr.Error()))
	} else {
		detail := "no notification required"
		if notifyActions[action] {
			detail = fmt.Sprintf("notified %s", recipient)
		}
		a.logStep(ctx, doc.ID, StepNotification, model.StepCompleted, detail, stepStart)
		trace = append(trace, fmt.Sprintf("[%s] %s", StepNotification, detail))
	}

	// Persist the outcome.
	now := time.Now()
	doc.Status = statusForAction(action)
	doc.WorkflowAction = action
	doc.ExtractedData = mustJSON(values)
	doc.ConfidenceScores = mustJSON(confidences)
	doc.ProcessedAt = &now
	elapsed := time.Since(started)
	trace = append(trace, fmt.Sprintf("total elapsed: %dms", elapsed.Milliseconds()))
	doc.AgentReasoning = strings.Join(trace, "\n")
	if err := a.store.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to persist final state for %s: %w", doc.ID, err)
	}

	if a.indexer != nil {
		if err := a.indexer.IndexDocument(doc); err != nil {
			log.Printf("[ProcessDocument] indexing failed for %s: %v", doc.ID, err)
		}
	}

	log.Printf("[ProcessDocument] document %s finished: status=%s action=%s in %s", doc.ID, doc.Status, action, elapsed)
	return nil
}

// failRun transitions the document to failed, keeping the partial trace. The
// error message stored on the document and the failed log row carry the same
// text so the two records always agree.
func (a *AgentService) failRun(ctx context.Context, doc *model.Document, trace []string, started time.Time, err error, stepStart time.Time) error {
	step := StepOf(err)
	if step == "" {
		step = StepDocumentLoading
	}
	// a dispatcher-imposed wall-clock limit surfaces as a Timeout kind
	if errors.Is(err, context.DeadlineExceeded) {
		err = NewStepError(step, KindTimeout, "processing exceeded the wall-clock limit", err)
	}

	// the run's deadline may already be expired; the failed status and log
	// row must still reach the database or the document stays processing
	// forever
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failPersistTimeout)
	defer cancel()

	msg := err.Error()
	a.logStep(persistCtx, doc.ID, step, model.StepFailed, msg, stepStart)
	trace = append(trace, fmt.Sprintf("[%s] failed: %s", step, msg))
	trace = append(trace, fmt.Sprintf("total elapsed: %dms", time.Since(started).Milliseconds()))

	now := time.Now()
	doc.Status = model.StatusFailed
	doc.ErrorMessage = msg
	doc.ProcessedAt = &now
	doc.AgentReasoning = strings.Join(trace, "\n")
	if serr := a.store.SaveDocument(persistCtx, doc); serr != nil {
		log.Printf("[ProcessDocument] ERROR persisting failed state for %s: %v", doc.ID, serr)
	}

	log.Printf("[ProcessDocument] document %s failed at %s: %s", doc.ID, step, msg)
	return err
}

// logStep appends one write-once row to the processing log. The trail is best
// effort: a failed append is logged and the run continues.
func (a *AgentService) logStep(ctx context.Context, docID, step, status, detail string, stepStart time.Time) {
	entry := &model.ProcessingLog{
		DocumentID:      docID,
		StepName:        step,
		StepStatus:      status,
		Details:         detail,
		ExecutionTimeMs: time.Since(stepStart).Milliseconds(),
		Timestamp:       time.Now(),
	}
	if err := a.store.AppendLog(ctx, entry); err != nil {
		log.Printf("[ProcessDocument] ERROR appending log row for %s step %s: %v", docID, step, err)
	}
}

// statusForAction derives the terminal status from the chosen action.
func statusForAction(action model.WorkflowAction) model.ProcessingStatus {
	if action == model.ActionApprove {
		return model.StatusCompleted
	}
	return model.StatusFlagged
}

// entitiesFromExtraction builds one entity row per configured question, in
// question order.
func entitiesFromExtraction(docID string, docType model.DocumentType, values map[string]string, confidences map[string]float64) []*model.ExtractedEntity {
	questions := QuestionsFor(docType)
	entities := make([]*model.ExtractedEntity, 0, len(questions))
	for _, q := range questions {
		entities = append(entities, &model.ExtractedEntity{
			DocumentID:      docID,
			EntityType:      q.Field,
			EntityValue:     values[q.Field],
			ConfidenceScore: confidences[q.Field],
		})
	}
	return entities
}

// describeExtraction renders field values and confidences in question order
// so the trace is stable across runs.
func describeExtraction(docType model.DocumentType, values map[string]string, confidences map[string]float64) string {
	var parts []string
	for _, q := range QuestionsFor(docType) {
		parts = append(parts, fmt.Sprintf("%s=%q (confidence %.2f)", q.Field, values[q.Field], confidences[q.Field]))
	}
	return strings.Join(parts, "; ")
}

func mustJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[mustJSON] marshal error: %v", err)
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(b)
}
