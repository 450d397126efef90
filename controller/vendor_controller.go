package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model "github.com/docupilot/docupilot/models"
	service "github.com/docupilot/docupilot/service"
)

// VendorController manages the vendor reference records used by validation.
type VendorController struct {
	service *service.VendorService
}

func NewVendorController(service *service.VendorService) *VendorController {
	return &VendorController{service}
}

func (c *VendorController) AddVendor(ctx *gin.Context) {
	var vendor model.Vendor
	if err := ctx.ShouldBindJSON(&vendor); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vendor payload"})
		return
	}

	if err := c.service.AddVendor(&vendor); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"vendor": vendor})
}

func (c *VendorController) GetAllVendors(ctx *gin.Context) {
	vendors, err := c.service.GetAllVendors()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"vendors": vendors})
}
