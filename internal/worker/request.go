package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aescanero/dago-node-template/internal/selector"
)

// RenderRequest is a render job read from the work stream
type RenderRequest struct {
	RequestID   string `json:"request_id"`
	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`

	// template choice: template, template_name, rules, classify, fallback
	selector.Config

	// Data is the render context. When absent the graph state of
	// ExecutionID is used.
	Data json.RawMessage `json:"data,omitempty"`
	// DataPath selects part of Data, such as "payload.user"
	DataPath string `json:"data_path,omitempty"`
	// Complete sends the rendered text to the LLM as a prompt
	Complete bool `json:"complete,omitempty"`
}

// RenderResult is published on the result stream
type RenderResult struct {
	RequestID   string    `json:"request_id"`
	ExecutionID string    `json:"execution_id,omitempty"`
	NodeID      string    `json:"node_id,omitempty"`
	Template    string    `json:"template"`
	Mode        string    `json:"mode"`
	PathTaken   string    `json:"path_taken"`
	Reasoning   string    `json:"reasoning,omitempty"`
	Output      string    `json:"output"`
	Completion  string    `json:"completion,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// parseRenderRequest parses a render request from a Redis message
func parseRenderRequest(values map[string]interface{}) (*RenderRequest, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var request RenderRequest
	if err := json.Unmarshal([]byte(dataStr), &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal render request: %w", err)
	}

	if request.RequestID == "" {
		request.RequestID = uuid.NewString()
	}

	return &request, nil
}
