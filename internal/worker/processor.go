package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aescanero/dago-libs/pkg/domain/state"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-template/internal/data"
	"github.com/aescanero/dago-node-template/internal/eval/template"
	"github.com/aescanero/dago-node-template/internal/loader"
	"github.com/aescanero/dago-node-template/internal/selector"
)

// StateLoader loads the graph state of an execution
type StateLoader interface {
	Load(ctx context.Context, executionID string) (state.State, error)
}

// Processor turns render requests into results
type Processor struct {
	engine     *template.Engine
	selector   *selector.Selector
	manifest   *loader.Manifest
	stateStore StateLoader
	complete   selector.CompleteFunc
	logger     *zap.Logger
}

// NewProcessor creates a processor. manifest, stateStore and complete are
// optional.
func NewProcessor(
	engine *template.Engine,
	sel *selector.Selector,
	manifest *loader.Manifest,
	stateStore StateLoader,
	complete selector.CompleteFunc,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		engine:     engine,
		selector:   sel,
		manifest:   manifest,
		stateStore: stateStore,
		complete:   complete,
		logger:     logger,
	}
}

// Process renders one request
func (p *Processor) Process(ctx context.Context, request *RenderRequest) (*RenderResult, error) {
	ctxData, err := p.loadData(ctx, request)
	if err != nil {
		return nil, err
	}

	selection, err := p.selector.Select(ctx, ctxData, &request.Config)
	if err != nil {
		return nil, fmt.Errorf("template selection failed: %w", err)
	}

	var output, templateName string
	if selection.Source != "" {
		templateName = "inline"
		output, err = p.engine.RenderContext(ctx, selection.Source, ctxData)
	} else {
		templateName = selection.Name
		ctxData = p.withDefaults(selection.Name, ctxData)
		output, err = p.engine.RenderNamed(ctx, selection.Name, ctxData)
	}
	if err != nil {
		err = fmt.Errorf("failed to render template %s: %w", templateName, err)
		if kind, _, _ := classify(err); kind == "invalid_request" && ctx.Err() == nil {
			// not an engine error: the template store failed
			err = &transientError{err: err}
		}
		return nil, err
	}

	result := &RenderResult{
		RequestID:   request.RequestID,
		ExecutionID: request.ExecutionID,
		NodeID:      request.NodeID,
		Template:    templateName,
		Mode:        selection.Mode,
		PathTaken:   selection.PathTaken,
		Reasoning:   selection.Reasoning,
		Output:      output,
		Timestamp:   time.Now().UTC(),
	}

	if request.Complete {
		if p.complete == nil {
			return nil, fmt.Errorf("completion requested but llm client not configured")
		}
		completion, err := p.complete(ctx, output)
		if err != nil {
			return nil, &transientError{err: fmt.Errorf("llm completion failed: %w", err)}
		}
		result.Completion = completion
	}

	p.logger.Info("template rendered",
		zap.String("request_id", request.RequestID),
		zap.String("template", templateName),
		zap.String("mode", selection.Mode),
		zap.Int("output_bytes", len(output)),
	)

	return result, nil
}

// loadData builds the render context: inline JSON data, else the
// execution's graph state, else nothing
func (p *Processor) loadData(ctx context.Context, request *RenderRequest) (interface{}, error) {
	if len(request.Data) > 0 {
		if request.DataPath != "" {
			v, err := data.FromJSONPath(request.Data, request.DataPath)
			if err != nil {
				return nil, fmt.Errorf("failed to parse data: %w", err)
			}
			return v, nil
		}
		v, err := data.FromJSON(request.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse data: %w", err)
		}
		return v, nil
	}

	if request.ExecutionID == "" || p.stateStore == nil {
		return nil, nil
	}

	st, err := p.stateStore.Load(ctx, request.ExecutionID)
	if errors.Is(err, ErrStateNotFound) {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("failed to load state: %w", err)}
	}
	return map[string]interface{}(st), nil
}

// withDefaults merges manifest defaults under the request data
func (p *Processor) withDefaults(name string, ctxData interface{}) interface{} {
	if p.manifest == nil {
		return ctxData
	}
	obj, ok := ctxData.(*data.Object)
	if !ok {
		return p.manifest.WithDefaults(name, ctxData)
	}

	entry, ok := p.manifest.Entry(name)
	if !ok || len(entry.Defaults) == 0 {
		return obj
	}
	keys := make([]string, 0, len(entry.Defaults))
	for k := range entry.Defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	defaults := data.NewObject()
	for _, k := range keys {
		defaults.Set(k, entry.Defaults[k])
	}
	return data.Merge(defaults, obj)
}
