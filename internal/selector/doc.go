// Package selector decides which template a render request uses.
//
// Modes:
//   - inline: the request carries the template source
//   - named: the request names a registered or loadable template
//   - rules: CEL conditions over the request data, first match wins
//   - classify: an LLM answers a rendered prompt; the answer maps to a template
//   - hybrid: rules first, classification when none match
//
// Rules, classify and hybrid require a fallback template, used when nothing
// matches or the LLM is unavailable.
//
// Example rules selection:
//
//	config := &selector.Config{
//	    Rules: []selector.Rule{
//	        {Condition: "state.priority == 'high'", Template: "urgent"},
//	        {Condition: "state.score > 0.8", Template: "premium"},
//	    },
//	    Fallback: "standard",
//	}
//	selection, err := s.Select(ctx, data, config)
//
// Example hybrid selection:
//
//	config := &selector.Config{
//	    Rules: []selector.Rule{
//	        {Condition: "state.message.contains('refund')", Template: "refund"},
//	    },
//	    Classify: &selector.ClassifyConfig{
//	        PromptTemplate: "Classify as technical or billing: {{message}}",
//	        Routes: map[string]string{"technical": "tech_reply", "billing": "billing_reply"},
//	    },
//	    Fallback: "generic_reply",
//	}
package selector
