package pricing

import (
	"slices"

	"github.com/safar/go-price-resolver/internal/models"
)

// Generic price rules match on exact equality; price list rules match on
// membership in the rule's value set.

func matchPriceRule(rule models.PriceRule, attribute string, attrs map[string]string) bool {
	value, ok := attrs[attribute]
	return ok && value == rule.Value
}

func matchPriceListRule(rule models.PriceListRule, attribute string, attrs map[string]string) bool {
	value, ok := attrs[attribute]
	return ok && slices.Contains(rule.Values, value)
}

// countMatchedPriceRules counts the distinct rule types among rules whose
// condition holds in attrs.
func countMatchedPriceRules(rules []models.PriceRule, ruleTypes map[string]models.RuleType, attrs map[string]string) int {
	matched := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		rt, ok := ruleTypes[rule.RuleTypeID]
		if !ok {
			continue
		}
		if matchPriceRule(rule, rt.RuleAttribute, attrs) {
			matched[rule.RuleTypeID] = struct{}{}
		}
	}
	return len(matched)
}

func countMatchedPriceListRules(rules []models.PriceListRule, ruleTypes map[string]models.RuleType, attrs map[string]string) int {
	matched := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		attribute := rule.RuleAttribute
		if rt, ok := ruleTypes[rule.RuleTypeID]; ok {
			attribute = rt.RuleAttribute
		}
		if attribute == "" {
			continue
		}
		if matchPriceListRule(rule, attribute, attrs) {
			matched[rule.RuleTypeID] = struct{}{}
		}
	}
	return len(matched)
}
