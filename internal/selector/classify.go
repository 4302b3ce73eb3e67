package selector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// selectByClassification renders the classification prompt, asks the LLM
// and maps the answer to a template. Every failure falls back.
func (s *Selector) selectByClassification(ctx context.Context, data interface{}, config *Config, mode Mode) (*Selection, error) {
	fallback := func(reason string) *Selection {
		return &Selection{
			Name:      config.Fallback,
			Mode:      string(mode),
			Reasoning: reason,
			PathTaken: "fallback",
		}
	}

	if s.complete == nil {
		s.logger.Warn("llm client not configured, using fallback template")
		return fallback("llm client not configured"), nil
	}

	prompt, err := s.templateEngine.RenderContext(ctx, config.Classify.PromptTemplate, data)
	if err != nil {
		s.logger.Error("failed to render classification prompt", zap.Error(err))
		return fallback(fmt.Sprintf("failed to render prompt: %v", err)), nil
	}

	s.logger.Debug("calling llm for template selection",
		zap.String("prompt", prompt),
	)

	response, err := s.complete(ctx, prompt)
	if err != nil {
		s.logger.Error("llm call failed", zap.Error(err))
		return fallback(fmt.Sprintf("llm call failed: %v", err)), nil
	}

	s.logger.Debug("llm response received",
		zap.String("response", response),
	)

	target, matched := s.matchResponse(response, config.Classify.Routes)
	if !matched {
		s.logger.Warn("llm response did not match any route",
			zap.String("response", response),
		)
		return fallback(fmt.Sprintf("llm response '%s' did not match any route", response)), nil
	}

	return &Selection{
		Name:      target,
		Mode:      string(mode),
		Reasoning: fmt.Sprintf("llm classified as: %s", strings.TrimSpace(response)),
		PathTaken: "slow",
	}, nil
}

// matchResponse matches an LLM answer to a route: exact, then
// case-insensitive, then the longest route key contained in the answer
func (s *Selector) matchResponse(response string, routes map[string]string) (string, bool) {
	normalized := strings.TrimSpace(strings.ToLower(response))

	if target, ok := routes[normalized]; ok {
		return target, true
	}

	keys := make([]string, 0, len(routes))
	for key := range routes {
		keys = append(keys, key)
	}
	// longest first so "billing_dispute" beats "billing"
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		if strings.EqualFold(key, normalized) {
			return routes[key], true
		}
	}

	for _, key := range keys {
		if strings.Contains(normalized, strings.ToLower(key)) {
			s.logger.Debug("matched route by partial match",
				zap.String("response", response),
				zap.String("matched_key", key),
			)
			return routes[key], true
		}
	}

	return "", false
}
