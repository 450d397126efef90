package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"

	model "github.com/docupilot/docupilot/models"
)

func cond(s string) datatypes.JSON { return datatypes.JSON([]byte(s)) }

func TestEvaluateRules_FirstMatchWins(t *testing.T) {
	// Rules arrive already ordered: priority DESC, name ASC.
	rules := []model.ProcessingRule{
		{Name: "high value invoice", Priority: 10, Action: model.ActionFlagForReview,
			Conditions: cond(`{"field": "total_amount", "operator": "greater_than", "value": 10000}`)},
		{Name: "low confidence vendor", Priority: 5, Action: model.ActionRequestMoreInfo,
			Conditions: cond(`{"field": "vendor_name", "operator": "confidence_below", "value": 0.5}`)},
	}
	in := RuleInput{
		Fields:      map[string]string{"total_amount": "$12,500.00", "vendor_name": "Acme Corp"},
		Confidences: map[string]float64{"total_amount": 0.95, "vendor_name": 0.3},
	}

	action, trace := EvaluateRules(rules, in)

	// both rules would match; the higher priority one decides and the second
	// is never even checked
	assert.Equal(t, model.ActionFlagForReview, action)
	assert.Contains(t, trace, `rule "high value invoice" (priority 10): triggered`)
	assert.Contains(t, trace, "decision: flag_for_review")
	assert.NotContains(t, trace, "low confidence vendor")
}

func TestEvaluateRules_CheckedNotTriggeredAppearsInTrace(t *testing.T) {
	rules := []model.ProcessingRule{
		{Name: "high value invoice", Priority: 10, Action: model.ActionFlagForReview,
			Conditions: cond(`{"field": "total_amount", "operator": "greater_than", "value": 10000}`)},
		{Name: "low confidence vendor", Priority: 5, Action: model.ActionRequestMoreInfo,
			Conditions: cond(`{"field": "vendor_name", "operator": "confidence_below", "value": 0.5}`)},
	}
	in := RuleInput{
		Fields:      map[string]string{"total_amount": "500.00", "vendor_name": "Acme Corp"},
		Confidences: map[string]float64{"total_amount": 0.95, "vendor_name": 0.3},
	}

	action, trace := EvaluateRules(rules, in)

	assert.Equal(t, model.ActionRequestMoreInfo, action)
	assert.Contains(t, trace, `rule "high value invoice" (priority 10): checked, not triggered`)
	assert.Contains(t, trace, `rule "low confidence vendor" (priority 5): triggered`)
}

func TestEvaluateRules_NoMatchDefaultsToApprove(t *testing.T) {
	rules := []model.ProcessingRule{
		{Name: "high value invoice", Priority: 10, Action: model.ActionFlagForReview,
			Conditions: cond(`{"field": "total_amount", "operator": "greater_than", "value": 10000}`)},
	}
	in := RuleInput{Fields: map[string]string{"total_amount": "42.00"}}

	action, trace := EvaluateRules(rules, in)

	assert.Equal(t, model.ActionApprove, action)
	assert.Contains(t, trace, "no rule matched; decision: approve")
}

func TestEvaluateRules_NoRulesStillApproves(t *testing.T) {
	action, trace := EvaluateRules(nil, RuleInput{})
	assert.Equal(t, model.ActionApprove, action)
	assert.Equal(t, "no rule matched; decision: approve", trace)
}

func TestEvaluateRules_Deterministic(t *testing.T) {
	rules := []model.ProcessingRule{
		{Name: "a", Priority: 3, Action: model.ActionReject,
			Conditions: cond(`{"field": "status", "operator": "equals", "value": "void"}`)},
		{Name: "b", Priority: 2, Action: model.ActionFlagForReview,
			Conditions: cond(`{"field": "total_amount", "operator": "less_than", "value": 1}`)},
	}
	in := RuleInput{Fields: map[string]string{"status": "paid", "total_amount": "0.50"}}

	action1, trace1 := EvaluateRules(rules, in)
	action2, trace2 := EvaluateRules(rules, in)
	assert.Equal(t, action1, action2)
	assert.Equal(t, trace1, trace2)
}

func TestEvaluateRules_ConditionArrayIsConjunction(t *testing.T) {
	rules := []model.ProcessingRule{
		{Name: "suspect invoice", Priority: 1, Action: model.ActionFlagForReview,
			Conditions: cond(`[
				{"field": "total_amount", "operator": "greater_than", "value": 1000},
				{"field": "vendor_name", "operator": "not_validated", "value": null}
			]`)},
	}

	matchingEntities := []*model.ExtractedEntity{
		{EntityType: "vendor_name", Validated: false, ValidationResult: "not found"},
	}

	action, _ := EvaluateRules(rules, RuleInput{
		Fields:   map[string]string{"total_amount": "2000"},
		Entities: matchingEntities,
	})
	assert.Equal(t, model.ActionFlagForReview, action)

	// one leg failing means no match
	action, _ = EvaluateRules(rules, RuleInput{
		Fields:   map[string]string{"total_amount": "500"},
		Entities: matchingEntities,
	})
	assert.Equal(t, model.ActionApprove, action)
}

func TestEvalCondition_Operators(t *testing.T) {
	entities := []*model.ExtractedEntity{
		{EntityType: "vendor_name", Validated: false, ValidationResult: "not found"},
		{EntityType: "total_amount", Validated: true},
	}
	in := RuleInput{
		Fields: map[string]string{
			"total_amount": "$1,234.56",
			"vendor_name":  "Acme Corp",
			"notes":        "URGENT payment required",
		},
		Confidences: map[string]float64{"vendor_name": 0.42},
		Entities:    entities,
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"greater_than true", Condition{"total_amount", "greater_than", 1000.0}, true},
		{"greater_than false", Condition{"total_amount", "greater_than", 2000.0}, false},
		{"greater_than equal is false", Condition{"total_amount", "greater_than", 1234.56}, false},
		{"less_than true", Condition{"total_amount", "less_than", 2000.0}, true},
		{"equals case insensitive", Condition{"vendor_name", "equals", "acme corp"}, true},
		{"not_equals", Condition{"vendor_name", "not_equals", "Globex"}, true},
		{"contains case insensitive", Condition{"notes", "contains", "urgent"}, true},
		{"contains false", Condition{"notes", "contains", "refund"}, false},
		{"confidence_below true", Condition{"vendor_name", "confidence_below", 0.5}, true},
		{"confidence_below false", Condition{"vendor_name", "confidence_below", 0.4}, false},
		{"not_validated true", Condition{"vendor_name", "not_validated", nil}, true},
		{"not_validated false", Condition{"total_amount", "not_validated", nil}, false},
		{"missing field never matches", Condition{"missing", "equals", "x"}, false},
		{"unknown operator never matches", Condition{"total_amount", "between", 1}, false},
		{"unparseable amount never matches", Condition{"notes", "greater_than", 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, why := evalCondition(tt.cond, in)
			assert.Equal(t, tt.want, got)
			if got {
				assert.NotEmpty(t, why)
			}
		})
	}
}

func TestParseConditions(t *testing.T) {
	conds, err := parseConditions(cond(`{"field": "a", "operator": "equals", "value": "b"}`))
	assert.NoError(t, err)
	assert.Len(t, conds, 1)

	conds, err = parseConditions(cond(`[{"field": "a", "operator": "equals", "value": "b"}, {"field": "c", "operator": "contains", "value": "d"}]`))
	assert.NoError(t, err)
	assert.Len(t, conds, 2)

	_, err = parseConditions(cond(``))
	assert.Error(t, err)

	_, err = parseConditions(cond(`[]`))
	assert.Error(t, err)

	_, err = parseConditions(cond(`not json`))
	assert.Error(t, err)
}
