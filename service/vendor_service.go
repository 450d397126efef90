package services

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	model "github.com/docupilot/docupilot/models"
)

// VendorService manages the vendor reference records the validator reads.
type VendorService struct {
	db *gorm.DB
}

func NewVendorService(db *gorm.DB) *VendorService {
	return &VendorService{db: db}
}

func (s *VendorService) AddVendor(vendor *model.Vendor) error {
	if vendor.VendorName == "" || vendor.VendorCode == "" {
		return fmt.Errorf("vendor name and code are required")
	}
	vendor.CreatedAt = time.Now()
	if err := s.db.Create(vendor).Error; err != nil {
		log.Printf("Error saving vendor: %v", err)
		return err
	}
	log.Printf("Vendor %s added successfully", vendor.VendorName)
	return nil
}

func (s *VendorService) GetAllVendors() ([]model.Vendor, error) {
	var vendors []model.Vendor
	if err := s.db.Order("vendor_name ASC").Find(&vendors).Error; err != nil {
		log.Printf("ERROR fetching vendors: %v", err)
		return nil, err
	}
	return vendors, nil
}
