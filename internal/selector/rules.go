package selector

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// selectByRules evaluates CEL rules in order; the first true one wins
func (s *Selector) selectByRules(ctx context.Context, data interface{}, config *Config) (*Selection, error) {
	if rule, i, ok := s.matchRules(ctx, data, config.Rules); ok {
		return &Selection{
			Name:      rule.Template,
			Mode:      string(ModeRules),
			Reasoning: fmt.Sprintf("matched rule %d: %s", i, rule.Condition),
			PathTaken: "fast",
		}, nil
	}

	s.logger.Info("no rules matched, using fallback",
		zap.String("fallback", config.Fallback),
	)

	return &Selection{
		Name:      config.Fallback,
		Mode:      string(ModeRules),
		Reasoning: "no rules matched",
		PathTaken: "fallback",
	}, nil
}

// matchRules returns the first rule whose condition holds. Rules that fail
// to evaluate or do not produce a boolean are skipped.
func (s *Selector) matchRules(ctx context.Context, data interface{}, rules []Rule) (Rule, int, bool) {
	vars := map[string]interface{}{"state": data}

	for i, rule := range rules {
		s.logger.Debug("evaluating rule",
			zap.Int("rule_index", i),
			zap.String("condition", rule.Condition),
		)

		matched, err := s.celEvaluator.EvaluateBool(ctx, rule.Condition, vars)
		if err != nil {
			s.logger.Warn("rule evaluation error",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.Error(err),
			)
			continue
		}

		if matched {
			s.logger.Info("rule matched",
				zap.Int("rule_index", i),
				zap.String("condition", rule.Condition),
				zap.String("template", rule.Template),
			)
			return rule, i, true
		}
	}
	return Rule{}, -1, false
}

// selectHybrid tries the rules, then classification
func (s *Selector) selectHybrid(ctx context.Context, data interface{}, config *Config) (*Selection, error) {
	if rule, i, ok := s.matchRules(ctx, data, config.Rules); ok {
		return &Selection{
			Name:      rule.Template,
			Mode:      string(ModeHybrid),
			Reasoning: fmt.Sprintf("matched fast rule %d: %s", i, rule.Condition),
			PathTaken: "fast",
		}, nil
	}

	s.logger.Debug("rules did not match, trying classification")
	result, err := s.selectByClassification(ctx, data, config, ModeHybrid)
	if err != nil {
		return nil, err
	}
	if result.PathTaken == "slow" {
		result.Reasoning += " (after rules failed)"
	}
	return result, nil
}
