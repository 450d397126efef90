package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"gorm.io/gorm"

	model "github.com/docupilot/docupilot/models"
)

// TaskSubject is the broker subject carrying document IDs to process.
const TaskSubject = "documents.process"

// DefaultMaxFileSizeMB is the upload ceiling when MAX_FILE_SIZE_MB is unset.
const DefaultMaxFileSizeMB = 50

var extToMime = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// DocumentService handles the document CRUD surface around the pipeline:
// uploads into object storage, listing, deletion, stats and search.
type DocumentService struct {
	db       *gorm.DB
	storage  ObjectStorage
	esClient *elasticsearch.Client
	nc       *nats.Conn
	maxBytes int64
}

// NewDocumentService wires storage, search and the task broker. Elasticsearch
// is optional; without ELASTICSEARCH_URL indexing and search are disabled.
func NewDocumentService(db *gorm.DB, storage ObjectStorage, nc *nats.Conn) (*DocumentService, error) {
	maxMB := int64(DefaultMaxFileSizeMB)
	if v := os.Getenv("MAX_FILE_SIZE_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxMB = n
		}
	}

	esURL := os.Getenv("ELASTICSEARCH_URL")
	var esClient *elasticsearch.Client
	if esURL != "" {
		esConfig := elasticsearch.Config{
			Addresses: []string{esURL},
		}
		var err error
		esClient, err = elasticsearch.NewClient(esConfig)
		if err != nil {
			log.Printf("Warning: Failed to create Elasticsearch client: %v", err)
		}
	}

	return &DocumentService{
		db:       db,
		storage:  storage,
		esClient: esClient,
		nc:       nc,
		maxBytes: maxMB * 1024 * 1024,
	}, nil
}

// UploadDocument validates the file, stores it and creates a pending Document
// record, then queues it for processing. Oversized or unsupported uploads are
// rejected before the pipeline ever runs.
func (s *DocumentService) UploadDocument(userID string, file multipart.File, header *multipart.FileHeader, docType string) (*model.Document, error) {
	log.Printf("[UploadDocument] file=%s size=%d type=%s user=%s", header.Filename, header.Size, docType, userID)

	if !model.ValidDocumentType(docType) {
		return nil, fmt.Errorf("invalid document type %q", docType)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	mimeType, ok := extToMime[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q, supported: pdf, png, jpg, jpeg", ext)
	}

	if header.Size > s.maxBytes {
		return nil, fmt.Errorf("file too large: %d bytes, max %d", header.Size, s.maxBytes)
	}

	fileBytes, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(fileBytes)) > s.maxBytes {
		return nil, fmt.Errorf("file too large: max %d bytes", s.maxBytes)
	}

	storedName := uuid.New().String() + ext
	key := fmt.Sprintf("documents/%s/%s", userID, storedName)
	if err := s.storage.Put(key, fileBytes, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	doc := model.Document{
		Filename:         storedName,
		OriginalFilename: header.Filename,
		FilePath:         key,
		FileSize:         int64(len(fileBytes)),
		MimeType:         mimeType,
		DocumentType:     model.DocumentType(docType),
		Status:           model.StatusPending,
		UserID:           userID,
		UploadedAt:       time.Now(),
	}
	if err := s.db.Create(&doc).Error; err != nil {
		log.Printf("[UploadDocument] ERROR saving document: %v", err)
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	if err := s.Enqueue(doc.ID); err != nil {
		// the record stays pending; an explicit reprocess can requeue it
		log.Printf("[UploadDocument] ERROR queueing document %s: %v", doc.ID, err)
		return &doc, fmt.Errorf("document stored but not queued: %w", err)
	}

	log.Printf("[UploadDocument] document %s queued for processing", doc.ID)
	return &doc, nil
}

// Enqueue publishes the document ID to the task broker.
func (s *DocumentService) Enqueue(documentID string) error {
	if s.nc == nil {
		return fmt.Errorf("task broker is not connected")
	}
	if err := s.nc.Publish(TaskSubject, []byte(documentID)); err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}
	return nil
}

// ListDocuments returns the user's documents, newest first.
func (s *DocumentService) ListDocuments(userID, statusFilter string, limit, offset int) ([]model.Document, int64, error) {
	query := s.db.Model(&model.Document{}).Where("user_id = ?", userID)
	if statusFilter != "" {
		query = query.Where("status = ?", statusFilter)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var docs []model.Document
	if err := query.Order("uploaded_at DESC").Limit(limit).Offset(offset).Find(&docs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch documents: %w", err)
	}
	return docs, total, nil
}

// GetDocument returns one document owned by the user.
func (s *DocumentService) GetDocument(userID, id string) (*model.Document, error) {
	var doc model.Document
	if err := s.db.First(&doc, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes the stored file and all database rows for the
// document. A run already in flight is allowed to finish; its writes target
// rows that no longer exist and are discarded by the database.
func (s *DocumentService) DeleteDocument(userID, id string) error {
	doc, err := s.GetDocument(userID, id)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(doc.FilePath); err != nil {
		log.Printf("[DeleteDocument] ERROR deleting %s from storage: %v", doc.FilePath, err)
	}

	if err := s.db.Delete(&model.ExtractedEntity{}, "document_id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete entities: %w", err)
	}
	if err := s.db.Delete(&model.ProcessingLog{}, "document_id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete logs: %w", err)
	}
	if err := s.db.Delete(&model.Document{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	log.Printf("[DeleteDocument] deleted document %s", id)
	return nil
}

// GetEntities returns the extracted entities for a document the user owns.
func (s *DocumentService) GetEntities(userID, documentID string) ([]model.ExtractedEntity, error) {
	if _, err := s.GetDocument(userID, documentID); err != nil {
		return nil, err
	}
	var entities []model.ExtractedEntity
	if err := s.db.Where("document_id = ?", documentID).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch entities: %w", err)
	}
	return entities, nil
}

// GetLogs returns the processing log for a document in step order.
func (s *DocumentService) GetLogs(userID, documentID string) ([]model.ProcessingLog, error) {
	if _, err := s.GetDocument(userID, documentID); err != nil {
		return nil, err
	}
	var logs []model.ProcessingLog
	if err := s.db.Where("document_id = ?", documentID).Order("timestamp ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch processing logs: %w", err)
	}
	return logs, nil
}

// Reprocess resets a terminal document to pending and requeues it. This is
// the only path back from failed; nothing retries automatically. A document
// still processing is refused.
func (s *DocumentService) Reprocess(userID, id string) (*model.Document, error) {
	doc, err := s.GetDocument(userID, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == model.StatusProcessing {
		return nil, fmt.Errorf("document %s is already being processed", id)
	}

	doc.Status = model.StatusPending
	doc.ErrorMessage = ""
	doc.WorkflowAction = ""
	doc.ProcessedAt = nil
	if err := s.db.Save(doc).Error; err != nil {
		return nil, fmt.Errorf("failed to reset document: %w", err)
	}
	if err := s.Enqueue(doc.ID); err != nil {
		return doc, fmt.Errorf("document reset but not queued: %w", err)
	}

	log.Printf("[Reprocess] document %s requeued", id)
	return doc, nil
}

// DocumentStats summarizes a user's documents by status.
type DocumentStats struct {
	Total                    int64    `json:"total_documents"`
	Pending                  int64    `json:"pending"`
	Processing               int64    `json:"processing"`
	Completed                int64    `json:"completed"`
	Failed                   int64    `json:"failed"`
	Flagged                  int64    `json:"flagged"`
	AvgProcessingTimeSeconds *float64 `json:"avg_processing_time_seconds"`
}

// GetStats computes per-status counts and the average processing time.
func (s *DocumentService) GetStats(userID string) (*DocumentStats, error) {
	stats := &DocumentStats{}
	base := func() *gorm.DB { return s.db.Model(&model.Document{}).Where("user_id = ?", userID) }

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	counts := []struct {
		status model.ProcessingStatus
		dest   *int64
	}{
		{model.StatusPending, &stats.Pending},
		{model.StatusProcessing, &stats.Processing},
		{model.StatusCompleted, &stats.Completed},
		{model.StatusFailed, &stats.Failed},
		{model.StatusFlagged, &stats.Flagged},
	}
	for _, c := range counts {
		if err := base().Where("status = ?", c.status).Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s documents: %w", c.status, err)
		}
	}

	var completed []model.Document
	if err := base().Where("status = ? AND processed_at IS NOT NULL", model.StatusCompleted).Find(&completed).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch completed documents: %w", err)
	}
	if len(completed) > 0 {
		var sum float64
		for _, doc := range completed {
			sum += doc.ProcessedAt.Sub(doc.UploadedAt).Seconds()
		}
		avg := sum / float64(len(completed))
		stats.AvgProcessingTimeSeconds = &avg
	}

	return stats, nil
}

// IndexDocument indexes the processed document in Elasticsearch. Indexing
// never breaks a processing run.
func (s *DocumentService) IndexDocument(doc *model.Document) error {
	if s.esClient == nil {
		log.Println("Elasticsearch client not initialized. Skipping indexing.")
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"document_id":   doc.ID,
		"filename":      doc.OriginalFilename,
		"document_type": doc.DocumentType,
		"status":        doc.Status,
		"action":        doc.WorkflowAction,
		"reasoning":     doc.AgentReasoning,
		"user_id":       doc.UserID,
		"timestamp":     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal document for indexing: %w", err)
	}

	res, err := s.esClient.Index(
		"documents",
		bytes.NewReader(body),
		s.esClient.Index.WithDocumentID(doc.ID),
		s.esClient.Index.WithContext(context.Background()),
	)
	if err != nil {
		log.Printf("Elasticsearch indexing error: %v", err)
		return nil
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Printf("Elasticsearch indexing failed: %s", res.String())
		return nil
	}

	log.Printf("Document %s indexed in Elasticsearch", doc.ID)
	return nil
}

// SearchDocuments runs a full-text query over the document index, scoped to
// the user.
func (s *DocumentService) SearchDocuments(userID, query string) ([]map[string]interface{}, error) {
	if s.esClient == nil {
		return nil, fmt.Errorf("elasticsearch client is not initialized")
	}

	searchQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"filename", "reasoning", "document_type"},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"user_id": userID},
				},
			},
		},
	}
	body, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(context.Background()),
		s.esClient.Search.WithIndex("documents"),
		s.esClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hitsMap, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits structure in search response")
	}
	hitsArray, ok := hitsMap["hits"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits array in search response")
	}

	var documents []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		documents = append(documents, source)
	}

	return documents, nil
}
