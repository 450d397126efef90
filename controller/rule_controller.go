package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model "github.com/docupilot/docupilot/models"
	service "github.com/docupilot/docupilot/service"
)

// RuleController manages the processing rule CRUD endpoints.
type RuleController struct {
	service *service.RuleService
}

func NewRuleController(service *service.RuleService) *RuleController {
	return &RuleController{service}
}

func (c *RuleController) AddRule(ctx *gin.Context) {
	var rule model.ProcessingRule
	if err := ctx.ShouldBindJSON(&rule); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule payload"})
		return
	}
	if rule.Name == "" || rule.Action == "" || !model.ValidDocumentType(string(rule.DocumentType)) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "name, action and a valid document_type are required"})
		return
	}

	if err := c.service.AddProcessingRule(&rule); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"rule": rule})
}

func (c *RuleController) GetAllRules(ctx *gin.Context) {
	rules, err := c.service.GetAllProcessingRules()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (c *RuleController) UpdateRule(ctx *gin.Context) {
	var rule model.ProcessingRule
	if err := ctx.ShouldBindJSON(&rule); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule payload"})
		return
	}
	rule.ID = ctx.Param("id")

	if err := c.service.UpdateProcessingRule(&rule); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"rule": rule})
}

func (c *RuleController) DeleteRule(ctx *gin.Context) {
	if err := c.service.DeleteProcessingRule(ctx.Param("id")); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.Status(http.StatusNoContent)
}
