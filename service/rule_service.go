package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	model "github.com/docupilot/docupilot/models"
)

// StepRuleEvaluation is the log name of the rule evaluation step.
const StepRuleEvaluation = "rule_evaluation"

// Condition is one predicate inside a rule's Conditions JSONB. A rule may
// hold a single condition object or an array of them; an array matches only
// when every condition matches.
type Condition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// RuleInput is everything a rule predicate can see.
type RuleInput struct {
	Fields      map[string]string
	Confidences map[string]float64
	Entities    []*model.ExtractedEntity
}

// RuleService stores processing rules and evaluates them against extraction
// results.
type RuleService struct {
	db *gorm.DB
}

func NewRuleService(db *gorm.DB) *RuleService {
	return &RuleService{db: db}
}

func (s *RuleService) AddProcessingRule(rule *model.ProcessingRule) error {
	if _, err := parseConditions(rule.Conditions); err != nil {
		return fmt.Errorf("invalid rule conditions: %w", err)
	}
	if err := s.db.Create(rule).Error; err != nil {
		log.Printf("Error saving processing rule: %v", err)
		return err
	}
	log.Printf("Processing rule %s added successfully", rule.Name)
	return nil
}

func (s *RuleService) GetAllProcessingRules() ([]model.ProcessingRule, error) {
	var rules []model.ProcessingRule
	if err := s.db.Order("priority DESC, name ASC").Find(&rules).Error; err != nil {
		log.Printf("ERROR fetching processing rules: %v", err)
		return nil, err
	}
	return rules, nil
}

func (s *RuleService) UpdateProcessingRule(rule *model.ProcessingRule) error {
	if _, err := parseConditions(rule.Conditions); err != nil {
		return fmt.Errorf("invalid rule conditions: %w", err)
	}
	if err := s.db.Save(rule).Error; err != nil {
		log.Printf("Error updating processing rule %s: %v", rule.ID, err)
		return err
	}
	return nil
}

func (s *RuleService) DeleteProcessingRule(id string) error {
	if err := s.db.Delete(&model.ProcessingRule{}, "id = ?", id).Error; err != nil {
		log.Printf("Error deleting processing rule %s: %v", id, err)
		return err
	}
	return nil
}

// Evaluate loads the active rules for the document type, ordered by priority
// descending with name as the tiebreaker, and walks them linearly. The first
// matching rule wins; rules checked before the winner are recorded as
// "checked, not triggered". No match defaults to approve.
func (s *RuleService) Evaluate(ctx context.Context, docType model.DocumentType, in RuleInput) (model.WorkflowAction, string, error) {
	var rules []model.ProcessingRule
	err := s.db.WithContext(ctx).
		Where("document_type = ? AND is_active = ?", docType, true).
		Order("priority DESC, name ASC").
		Find(&rules).Error
	if err != nil {
		log.Printf("[Evaluate] ERROR fetching rules for %s: %v", docType, err)
		return "", "", fmt.Errorf("failed to fetch processing rules: %w", err)
	}

	action, trace := EvaluateRules(rules, in)
	log.Printf("[Evaluate] %d rules checked for %s, action=%s", len(rules), docType, action)
	return action, trace, nil
}

// EvaluateRules is the deterministic core of the rule engine. Rules must
// already be in evaluation order; output is byte-identical across runs for
// identical inputs.
func EvaluateRules(rules []model.ProcessingRule, in RuleInput) (model.WorkflowAction, string) {
	var lines []string
	for _, rule := range rules {
		matched, why := ruleMatches(rule, in)
		if matched {
			lines = append(lines, fmt.Sprintf("rule %q (priority %d): triggered — %s", rule.Name, rule.Priority, why))
			lines = append(lines, fmt.Sprintf("decision: %s", rule.Action))
			return rule.Action, strings.Join(lines, "; ")
		}
		lines = append(lines, fmt.Sprintf("rule %q (priority %d): checked, not triggered", rule.Name, rule.Priority))
	}
	lines = append(lines, fmt.Sprintf("no rule matched; decision: %s", model.ActionApprove))
	return model.ActionApprove, strings.Join(lines, "; ")
}

func ruleMatches(rule model.ProcessingRule, in RuleInput) (bool, string) {
	conds, err := parseConditions(rule.Conditions)
	if err != nil {
		log.Printf("[ruleMatches] rule %s has malformed conditions: %v", rule.Name, err)
		return false, ""
	}

	var reasons []string
	for _, c := range conds {
		ok, why := evalCondition(c, in)
		if !ok {
			return false, ""
		}
		reasons = append(reasons, why)
	}
	return true, strings.Join(reasons, " and ")
}

func parseConditions(raw datatypes.JSON) ([]Condition, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("empty conditions")
	}
	if strings.HasPrefix(trimmed, "[") {
		var conds []Condition
		if err := json.Unmarshal(raw, &conds); err != nil {
			return nil, err
		}
		if len(conds) == 0 {
			return nil, fmt.Errorf("empty condition list")
		}
		return conds, nil
	}
	var cond Condition
	if err := json.Unmarshal(raw, &cond); err != nil {
		return nil, err
	}
	return []Condition{cond}, nil
}

func evalCondition(c Condition, in RuleInput) (bool, string) {
	switch c.Operator {
	case "greater_than", "less_than":
		fieldVal, ok := in.Fields[c.Field]
		if !ok {
			return false, ""
		}
		actual, err := ParseAmount(fieldVal)
		if err != nil {
			return false, ""
		}
		limit, ok := toFloat(c.Value)
		if !ok {
			return false, ""
		}
		if c.Operator == "greater_than" && actual > limit {
			return true, fmt.Sprintf("%s %.2f greater_than %.2f", c.Field, actual, limit)
		}
		if c.Operator == "less_than" && actual < limit {
			return true, fmt.Sprintf("%s %.2f less_than %.2f", c.Field, actual, limit)
		}
		return false, ""

	case "equals", "not_equals":
		fieldVal, ok := in.Fields[c.Field]
		if !ok {
			return false, ""
		}
		want := fmt.Sprintf("%v", c.Value)
		eq := strings.EqualFold(strings.TrimSpace(fieldVal), strings.TrimSpace(want))
		if c.Operator == "equals" && eq {
			return true, fmt.Sprintf("%s equals %q", c.Field, want)
		}
		if c.Operator == "not_equals" && !eq {
			return true, fmt.Sprintf("%s %q not_equals %q", c.Field, fieldVal, want)
		}
		return false, ""

	case "contains":
		fieldVal, ok := in.Fields[c.Field]
		if !ok {
			return false, ""
		}
		want := fmt.Sprintf("%v", c.Value)
		if strings.Contains(strings.ToLower(fieldVal), strings.ToLower(want)) {
			return true, fmt.Sprintf("%s contains %q", c.Field, want)
		}
		return false, ""

	case "confidence_below":
		conf, ok := in.Confidences[c.Field]
		if !ok {
			return false, ""
		}
		limit, lok := toFloat(c.Value)
		if !lok {
			return false, ""
		}
		if conf < limit {
			return true, fmt.Sprintf("%s confidence %.2f below %.2f", c.Field, conf, limit)
		}
		return false, ""

	case "not_validated":
		for _, e := range in.Entities {
			if e.EntityType == c.Field && !e.Validated {
				return true, fmt.Sprintf("%s not validated (%s)", c.Field, e.ValidationResult)
			}
		}
		return false, ""

	default:
		log.Printf("[evalCondition] unknown operator %q", c.Operator)
		return false, ""
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := ParseAmount(n)
		return f, err == nil
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
