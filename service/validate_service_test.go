package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	model "github.com/docupilot/docupilot/models"
)

func referenceVendors() []model.Vendor {
	return []model.Vendor{
		{VendorName: "Acme Corp", VendorCode: "ACME"},
		{VendorName: "Globex Corporation", VendorCode: "GLBX"},
		{VendorName: "Initech", VendorCode: "INTC"},
	}
}

func TestMatchVendor_ExactMatchIgnoresCase(t *testing.T) {
	ok, detail := MatchVendor("acme corp", referenceVendors(), DefaultMatchThreshold)
	assert.True(t, ok)
	assert.Equal(t, "exact match: Acme Corp", detail)

	ok, detail = MatchVendor("  ACME CORP  ", referenceVendors(), DefaultMatchThreshold)
	assert.True(t, ok)
	assert.Equal(t, "exact match: Acme Corp", detail)
}

func TestMatchVendor_FuzzyMatchAboveThreshold(t *testing.T) {
	// one substitution away from "Acme Corp"
	ok, detail := MatchVendor("Acme Korp", referenceVendors(), DefaultMatchThreshold)
	assert.True(t, ok)
	assert.Contains(t, detail, "fuzzy match: Acme Corp")
	assert.Contains(t, detail, "similarity")
}

func TestMatchVendor_BelowThresholdNotFound(t *testing.T) {
	ok, detail := MatchVendor("Wayne Enterprises", referenceVendors(), DefaultMatchThreshold)
	assert.False(t, ok)
	assert.Equal(t, "not found", detail)
}

func TestMatchVendor_EmptyValueNotFound(t *testing.T) {
	ok, detail := MatchVendor("", referenceVendors(), DefaultMatchThreshold)
	assert.False(t, ok)
	assert.Equal(t, "not found", detail)

	ok, _ = MatchVendor("   ", referenceVendors(), DefaultMatchThreshold)
	assert.False(t, ok)
}

func TestMatchVendor_EqualSimilarityBreaksTiesLexicographically(t *testing.T) {
	// the two candidates are the same edit distance from the input, so the
	// lexicographically smaller name must win, in whatever order the slice
	// arrives
	vendors := []model.Vendor{
		{VendorName: "acmf", VendorCode: "V2"},
		{VendorName: "acmd", VendorCode: "V1"},
	}
	ok, detail := MatchVendor("acme", vendors, 0.7)
	assert.True(t, ok)
	assert.Contains(t, detail, "fuzzy match: acmd")

	vendors[0], vendors[1] = vendors[1], vendors[0]
	ok, detail = MatchVendor("acme", vendors, 0.7)
	assert.True(t, ok)
	assert.Contains(t, detail, "fuzzy match: acmd")
}

func TestMatchVendor_NoVendors(t *testing.T) {
	ok, detail := MatchVendor("Acme Corp", nil, DefaultMatchThreshold)
	assert.False(t, ok)
	assert.Equal(t, "not found", detail)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1234.56", 1234.56, false},
		{"$1,234.56", 1234.56, false},
		{"€99", 99, false},
		{"£ 12,000", 12000, false},
		{" 42 ", 42, false},
		{"", 0, true},
		{"$", 0, true},
		{"twelve", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckAmount(t *testing.T) {
	ok, detail := checkAmount("$1,234.56")
	assert.True(t, ok)
	assert.Equal(t, "amount parsed", detail)

	ok, detail = checkAmount("n/a")
	assert.False(t, ok)
	assert.Contains(t, detail, "invalid amount format")
}

func TestCheckDate(t *testing.T) {
	for _, valid := range []string{
		"2025-03-05", "03/05/2025", "March 5, 2025", "Mar 5, 2025", "5 March 2025",
	} {
		ok, detail := checkDate(valid)
		assert.True(t, ok, valid)
		assert.Equal(t, "date parsed", detail)
	}

	ok, _ := checkDate("")
	assert.False(t, ok)

	ok, detail := checkDate("sometime next week")
	assert.False(t, ok)
	assert.Contains(t, detail, "unrecognized date format")
}

func TestFieldClassifiers(t *testing.T) {
	assert.True(t, crossCheckField("vendor_name"))
	assert.True(t, crossCheckField("merchant_name"))
	assert.False(t, crossCheckField("claimant_name"))

	assert.True(t, amountField("total_amount"))
	assert.True(t, amountField("claim_amount"))
	assert.False(t, amountField("invoice_number"))

	assert.True(t, dateField("invoice_date"))
	assert.True(t, dateField("due_date"))
	assert.False(t, dateField("date_notes"))
}
