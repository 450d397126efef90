package controller

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/docupilot/docupilot/middleware"
	service "github.com/docupilot/docupilot/service"
)

// DocumentController manages HTTP requests around document intake.
type DocumentController struct {
	service *service.DocumentService
}

func NewDocumentController(service *service.DocumentService) *DocumentController {
	return &DocumentController{service}
}

func currentUserID(ctx *gin.Context) string {
	return ctx.GetString(middleware.ContextUserID)
}

// UploadDocument handles the file upload request and queues processing.
func (c *DocumentController) UploadDocument(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Failed to get file from request"})
		return
	}
	defer file.Close()

	docType := ctx.PostForm("document_type")
	doc, err := c.service.UploadDocument(currentUserID(ctx), file, header, docType)
	if err != nil {
		if doc != nil {
			// stored but not queued; the client can reprocess explicitly
			ctx.JSON(http.StatusAccepted, gin.H{"document": doc, "warning": err.Error()})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message":  "Document uploaded and queued for processing",
		"document": doc,
	})
}

// ListDocuments returns the user's documents with optional status filter.
func (c *DocumentController) ListDocuments(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	docs, total, err := c.service.ListDocuments(currentUserID(ctx), ctx.Query("status"), limit, offset)
	if err != nil {
		log.Printf("Error fetching documents: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve documents"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     total,
	})
}

// GetDocument returns one document.
func (c *DocumentController) GetDocument(ctx *gin.Context) {
	doc, err := c.service.GetDocument(currentUserID(ctx), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"document": doc})
}

// DeleteDocument removes the document, its file and its rows.
func (c *DocumentController) DeleteDocument(ctx *gin.Context) {
	if err := c.service.DeleteDocument(currentUserID(ctx), ctx.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.Status(http.StatusNoContent)
}

// GetEntities returns the extracted entities for a document.
func (c *DocumentController) GetEntities(ctx *gin.Context) {
	entities, err := c.service.GetEntities(currentUserID(ctx), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"entities": entities})
}

// GetLogs returns the step-by-step processing log for a document.
func (c *DocumentController) GetLogs(ctx *gin.Context) {
	logs, err := c.service.GetLogs(currentUserID(ctx), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"logs": logs})
}

// Reprocess explicitly resubmits a terminal document.
func (c *DocumentController) Reprocess(ctx *gin.Context) {
	doc, err := c.service.Reprocess(currentUserID(ctx), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message":  "Document requeued for processing",
		"document": doc,
	})
}

// GetStats returns the per-status document counts for the dashboard.
func (c *DocumentController) GetStats(ctx *gin.Context) {
	stats, err := c.service.GetStats(currentUserID(ctx))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

// SearchDocuments runs a full-text query over the search index.
func (c *DocumentController) SearchDocuments(ctx *gin.Context) {
	query := ctx.Query("q")
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}

	results, err := c.service.SearchDocuments(currentUserID(ctx), query)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Search completed successfully",
		"results": results,
	})
}
