package selector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/dago-node-template/internal/eval/cel"
	"github.com/aescanero/dago-node-template/internal/eval/template"
)

// Mode represents how a request picks its template
type Mode string

const (
	// ModeInline renders the source carried by the request
	ModeInline Mode = "inline"

	// ModeNamed renders a registered or loadable template by name
	ModeNamed Mode = "named"

	// ModeRules picks a template name with CEL rules
	ModeRules Mode = "rules"

	// ModeClassify asks the LLM to pick among named templates
	ModeClassify Mode = "classify"

	// ModeHybrid tries CEL rules first and classifies when none match
	ModeHybrid Mode = "hybrid"
)

// Rule maps a CEL condition to a template name
type Rule struct {
	Condition string `json:"condition"`
	Template  string `json:"template"`
}

// ClassifyConfig describes LLM-based selection. The prompt is itself a
// template rendered with the request data; the answer is matched against
// the keys of Routes.
type ClassifyConfig struct {
	PromptTemplate string            `json:"prompt_template"`
	Routes         map[string]string `json:"routes"`
}

// Config is the selection part of a render request
type Config struct {
	Mode         Mode            `json:"mode,omitempty"`
	Template     string          `json:"template,omitempty"`
	TemplateName string          `json:"template_name,omitempty"`
	Rules        []Rule          `json:"rules,omitempty"`
	Classify     *ClassifyConfig `json:"classify,omitempty"`
	Fallback     string          `json:"fallback,omitempty"`
}

// Selection is the outcome of Select
type Selection struct {
	// Name is the template name, empty for inline sources
	Name string `json:"name,omitempty"`
	// Source is set for inline templates
	Source    string `json:"-"`
	Mode      string `json:"mode"`
	Reasoning string `json:"reasoning"`
	PathTaken string `json:"path_taken"` // "direct", "fast", "slow", "fallback"
}

// CompleteFunc sends a prompt to an LLM and returns its answer
type CompleteFunc func(ctx context.Context, prompt string) (string, error)

// Selector picks the template for a render request
type Selector struct {
	celEvaluator   *cel.Evaluator
	templateEngine *template.Engine
	complete       CompleteFunc
	logger         *zap.Logger
}

// NewSelector creates a new selector. complete may be nil, in which case
// classification falls back to the configured fallback template.
func NewSelector(evaluator *cel.Evaluator, engine *template.Engine, complete CompleteFunc, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		celEvaluator:   evaluator,
		templateEngine: engine,
		complete:       complete,
		logger:         logger,
	}
}

// Select picks a template for data according to config
func (s *Selector) Select(ctx context.Context, data interface{}, config *Config) (*Selection, error) {
	if config == nil {
		return nil, fmt.Errorf("config is nil")
	}

	mode := config.Mode
	if mode == "" {
		mode = DetectMode(config)
	}

	if err := validateConfig(mode, config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var (
		result *Selection
		err    error
	)
	switch mode {
	case ModeInline:
		result = &Selection{Source: config.Template, Mode: string(mode), Reasoning: "inline template", PathTaken: "direct"}
	case ModeNamed:
		result = &Selection{Name: config.TemplateName, Mode: string(mode), Reasoning: "named template", PathTaken: "direct"}
	case ModeRules:
		result, err = s.selectByRules(ctx, data, config)
	case ModeClassify:
		result, err = s.selectByClassification(ctx, data, config, mode)
	case ModeHybrid:
		result, err = s.selectHybrid(ctx, data, config)
	default:
		return nil, fmt.Errorf("unknown selection mode: %s", mode)
	}
	if err != nil {
		s.logger.Error("template selection failed",
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Debug("template selected",
		zap.String("mode", result.Mode),
		zap.String("template", result.Name),
		zap.String("path", result.PathTaken),
		zap.String("reasoning", result.Reasoning),
	)
	return result, nil
}

// DetectMode infers the mode from which fields are set
func DetectMode(config *Config) Mode {
	switch {
	case config.Template != "":
		return ModeInline
	case config.TemplateName != "":
		return ModeNamed
	case len(config.Rules) > 0 && config.Classify != nil:
		return ModeHybrid
	case config.Classify != nil:
		return ModeClassify
	default:
		return ModeRules
	}
}

// validateConfig validates the selection configuration
func validateConfig(mode Mode, config *Config) error {
	switch mode {
	case ModeInline:
		if config.Template == "" {
			return fmt.Errorf("inline mode requires template")
		}
		return nil
	case ModeNamed:
		if config.TemplateName == "" {
			return fmt.Errorf("named mode requires template_name")
		}
		return nil
	}

	if config.Fallback == "" {
		return fmt.Errorf("fallback template is required")
	}

	if mode == ModeRules || mode == ModeHybrid {
		if len(config.Rules) == 0 {
			return fmt.Errorf("%s mode requires rules", mode)
		}
		for i, rule := range config.Rules {
			if rule.Condition == "" {
				return fmt.Errorf("rule %d: condition is required", i)
			}
			if rule.Template == "" {
				return fmt.Errorf("rule %d: template is required", i)
			}
		}
	}

	if mode == ModeClassify || mode == ModeHybrid {
		if config.Classify == nil {
			return fmt.Errorf("%s mode requires classify", mode)
		}
		if config.Classify.PromptTemplate == "" {
			return fmt.Errorf("classify.prompt_template is required")
		}
		if len(config.Classify.Routes) == 0 {
			return fmt.Errorf("classify.routes is required")
		}
	}

	return nil
}
