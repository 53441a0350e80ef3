// Package extraction turns raw conversational input into candidate memory
// facts by invoking a language model with the strategy's extraction prompt
// and pulling the facts out of the structured response.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/internal/util"
	"github.com/hupe1980/memorymesh/logging"
	"github.com/hupe1980/memorymesh/model"
	"github.com/hupe1980/memorymesh/observability"
	"github.com/hupe1980/memorymesh/strategy"
)

// Strategy config keys recognized by the engine. Both override the handler
// defaults for a single strategy instance.
const (
	ConfigKeyPrompt     = "prompt"
	ConfigKeyResultPath = "result_path"
)

// Options configures an extraction Engine.
type Options struct {
	// Logger receives extraction diagnostics.
	Logger logging.Logger
}

// Engine extracts facts from message batches. It is stateless apart from its
// collaborators and safe for concurrent use.
type Engine struct {
	model    model.Model
	registry *strategy.Registry
	opts     Options
}

// New creates an extraction engine backed by the given model and strategy
// registry.
func New(m model.Model, registry *strategy.Registry, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{
		model:    m,
		registry: registry,
		opts:     opts,
	}
}

// ExtractFacts runs the strategy's extraction prompt over the message batch
// and returns the extracted facts. A configuration without a model is treated
// as "extraction disabled": the call returns (nil, nil) without invoking
// anything. A model call failure propagates to the caller; an unusable model
// response surfaces as core.ErrMalformedModelResponse.
func (e *Engine) ExtractFacts(ctx context.Context, messages []core.Message, strat core.MemoryStrategy, cfg core.MemoryConfiguration) ([]string, error) {
	if cfg.ModelID == "" {
		return nil, nil
	}

	ctx, span := observability.Tracer("memorymesh/extraction").Start(ctx, "extraction.extract_facts")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	handler, err := e.registry.Handler(strat.Type)
	if err != nil {
		return nil, err
	}

	systemPrompt := strat.ConfigValue(ConfigKeyPrompt, handler.SystemPrompt)
	resultPath := strat.ConfigValue(ConfigKeyResultPath, handler.DefaultResultPath)

	prompt, err := util.RenderTemplate(extractionUserPrompt, map[string]any{
		"Conversation": core.ContentText(messages),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render extraction prompt: %w", err)
	}

	resp, err := e.model.Invoke(ctx, model.Request{
		ModelID: cfg.ModelID,
		System:  systemPrompt,
		Prompt:  prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction model call failed: %w", err)
	}

	facts, err := factsFromResponse(resp, resultPath)
	if err != nil {
		return nil, err
	}

	e.opts.Logger.Debug("facts extracted", "strategy_id", strat.ID, "strategy_type", string(strat.Type), "count", len(facts))

	return facts, nil
}

// extractionUserPrompt wraps the flattened conversation for the model.
const extractionUserPrompt = `Conversation:
{{.Conversation}}`

// factsFromResponse resolves the result path against the model response.
//
// An empty path means the response is free text: the trimmed text is the
// single fact (or no facts when the model returned nothing). A non-empty
// path is a gjson expression evaluated against the response body; a missing
// key or a non-JSON body yields zero facts rather than an error, because a
// model that answered off-format simply produced nothing worth keeping. Only
// a value that exists but cannot be coerced into a string array is reported
// as malformed.
func factsFromResponse(resp *model.Response, resultPath string) ([]string, error) {
	if resultPath == "" {
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return []string{}, nil
		}
		return []string{text}, nil
	}

	target := strings.TrimSpace(resp.Text)
	if !gjson.Valid(target) {
		target = string(resp.Raw)
	}
	if target == "" || !gjson.Valid(target) {
		return []string{}, nil
	}

	value := gjson.Get(target, resultPath)
	if !value.Exists() {
		return []string{}, nil
	}

	if value.IsArray() {
		elems := value.Array()
		facts := make([]string, 0, len(elems))
		for _, el := range elems {
			if s := strings.TrimSpace(el.String()); s != "" {
				facts = append(facts, s)
			}
		}
		return facts, nil
	}

	// Some models return the array as a JSON-encoded string. Anything else
	// at the path is malformed.
	var facts []string
	if err := json.Unmarshal([]byte(value.String()), &facts); err != nil {
		return nil, fmt.Errorf("%w: result path %q yielded neither array nor encoded array: %v", core.ErrMalformedModelResponse, resultPath, err)
	}

	return facts, nil
}
