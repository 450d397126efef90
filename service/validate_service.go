package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agext/levenshtein"
	"gorm.io/gorm"

	model "github.com/docupilot/docupilot/models"
)

// StepValidation is the log name of the validation step.
const StepValidation = "validation"

// DefaultMatchThreshold is the minimum fuzzy similarity accepted when no
// exact vendor match exists.
const DefaultMatchThreshold = 0.80

// Accepted layouts for date-bearing fields.
var dateLayouts = []string{
	"2006-01-02", "01/02/2006", "02/01/2006", "January 2, 2006", "Jan 2, 2006", "2 January 2006",
}

// ValidateService cross-checks extracted entities against reference records.
// It reads the vendors table and never writes to it.
type ValidateService struct {
	db        *gorm.DB
	threshold float64
}

func NewValidateService(db *gorm.DB) *ValidateService {
	threshold := DefaultMatchThreshold
	if v := os.Getenv("VENDOR_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			threshold = f
		}
	}
	return &ValidateService{db: db, threshold: threshold}
}

// name-bearing fields checked against the vendor reference table
func crossCheckField(entityType string) bool {
	switch entityType {
	case "vendor_name", "merchant_name":
		return true
	}
	return false
}

func amountField(entityType string) bool {
	switch entityType {
	case "total_amount", "tax_amount", "claim_amount", "contract_value":
		return true
	}
	return false
}

func dateField(entityType string) bool {
	return strings.HasSuffix(entityType, "_date")
}

// ValidateEntities populates Validated and ValidationResult on each entity and
// returns a human-readable rationale for the reasoning trace. A reference
// store read failure is fatal and surfaces as ValidationLookupError.
func (s *ValidateService) ValidateEntities(ctx context.Context, entities []*model.ExtractedEntity) (string, error) {
	var vendors []model.Vendor
	if err := s.db.WithContext(ctx).Find(&vendors).Error; err != nil {
		log.Printf("[ValidateEntities] ERROR fetching vendors: %v", err)
		return "", NewStepError(StepValidation, KindValidationLookupError, "failed to read vendor reference table", err)
	}

	var rationale []string
	for _, e := range entities {
		switch {
		case crossCheckField(e.EntityType):
			validated, detail := MatchVendor(e.EntityValue, vendors, s.threshold)
			e.Validated = validated
			e.ValidationResult = detail
		case amountField(e.EntityType):
			e.Validated, e.ValidationResult = checkAmount(e.EntityValue)
		case dateField(e.EntityType):
			e.Validated, e.ValidationResult = checkDate(e.EntityValue)
		default:
			e.Validated = true
			e.ValidationResult = "no validation rules"
		}
		rationale = append(rationale, fmt.Sprintf("%s %q: %s", e.EntityType, e.EntityValue, e.ValidationResult))
		log.Printf("[ValidateEntities] %s=%q validated=%v (%s)", e.EntityType, e.EntityValue, e.Validated, e.ValidationResult)
	}

	return strings.Join(rationale, "; "), nil
}

// MatchVendor resolves a name against the vendor reference records.
// A case-insensitive exact match wins. Otherwise the highest levenshtein
// similarity at or above threshold is accepted as an inexact match; equal
// similarity ties break to the lexicographically smaller vendor name. Below
// threshold the value is reported as not found.
func MatchVendor(value string, vendors []model.Vendor, threshold float64) (bool, string) {
	if strings.TrimSpace(value) == "" {
		return false, "not found"
	}
	needle := strings.ToLower(strings.TrimSpace(value))

	sorted := make([]model.Vendor, len(vendors))
	copy(sorted, vendors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].VendorName < sorted[j].VendorName })

	for _, v := range sorted {
		if strings.ToLower(v.VendorName) == needle {
			return true, fmt.Sprintf("exact match: %s", v.VendorName)
		}
	}

	bestScore := 0.0
	bestName := ""
	for _, v := range sorted {
		score := levenshtein.Similarity(needle, strings.ToLower(v.VendorName), nil)
		// strictly greater keeps the lexicographically first name on ties
		if score > bestScore {
			bestScore = score
			bestName = v.VendorName
		}
	}

	if bestName != "" && bestScore >= threshold {
		return true, fmt.Sprintf("fuzzy match: %s (similarity %.2f)", bestName, bestScore)
	}
	return false, "not found"
}

func checkAmount(value string) (bool, string) {
	if _, err := ParseAmount(value); err != nil {
		return false, fmt.Sprintf("invalid amount format: %s", value)
	}
	return true, "amount parsed"
}

func checkDate(value string) (bool, string) {
	if value == "" {
		return false, "empty date"
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true, "date parsed"
		}
	}
	return false, fmt.Sprintf("unrecognized date format: %s", value)
}

// ParseAmount strips currency punctuation and parses the remaining number.
func ParseAmount(value string) (float64, error) {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.TrimLeft(cleaned, "$€£ ")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}
	return strconv.ParseFloat(cleaned, 64)
}
