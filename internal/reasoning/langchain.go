package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/taskpilot/internal/tools"
	"github.com/taskpilot/pkg/models"
)

// Provider represents a reasoning provider type
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderGoogleAI Provider = "googleai"
	ProviderOllama   Provider = "ollama"
)

// Options contains options for creating a langchain engine
type Options struct {
	Provider    Provider
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// LangchainEngine implements Engine on top of a langchaingo model
type LangchainEngine struct {
	llm     llms.Model
	options Options
}

// NewLangchainEngine creates an engine for the configured provider
func NewLangchainEngine(ctx context.Context, options Options) (*LangchainEngine, error) {
	var model llms.Model
	var err error

	log.Debug().
		Str("provider", string(options.Provider)).
		Str("model", options.Model).
		Msg("creating reasoning engine")

	switch options.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(options.APIKey),
			openai.WithModel(options.Model),
		}
		if options.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(options.BaseURL))
		}
		model, err = openai.New(opts...)
	case ProviderGoogleAI:
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(options.APIKey),
			googleai.WithDefaultModel(options.Model),
		)
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(options.Model)}
		if options.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(options.BaseURL))
		}
		model, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", options.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", options.Provider, err)
	}

	return &LangchainEngine{llm: model, options: options}, nil
}

// Decide sends the assembled history and tool catalog to the model and maps
// the response to a Decision.
func (e *LangchainEngine) Decide(ctx context.Context, history []models.Message, catalog []tools.Spec) (*Decision, error) {
	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt))

	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}

	callOpts := []llms.CallOption{
		llms.WithTools(toLLMTools(catalog)),
		llms.WithTemperature(e.options.Temperature),
	}
	if e.options.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(e.options.MaxTokens))
	}

	resp, err := e.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("reasoning call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("reasoning call returned no choices")
	}

	choice := resp.Choices[0]

	if len(choice.ToolCalls) == 0 {
		return &Decision{Reply: strings.TrimSpace(choice.Content)}, nil
	}

	decision := &Decision{}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		args, err := normalizeArguments(tc.FunctionCall.Arguments)
		if err != nil {
			return nil, models.NewValidationError("tool %s arguments unusable: %v", tc.FunctionCall.Name, err)
		}
		decision.ToolCalls = append(decision.ToolCalls, tools.Call{
			Name:      tc.FunctionCall.Name,
			Arguments: args,
		})
	}

	if len(decision.ToolCalls) == 0 {
		return &Decision{Reply: strings.TrimSpace(choice.Content)}, nil
	}

	return decision, nil
}

func toLLMTools(catalog []tools.Spec) []llms.Tool {
	out := make([]llms.Tool, 0, len(catalog))
	for _, spec := range catalog {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return out
}

// normalizeArguments validates the model's argument JSON, attempting repair
// of near-JSON output before giving up.
func normalizeArguments(raw string) (json.RawMessage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return json.RawMessage("{}"), nil
	}

	var probe interface{}
	if json.Unmarshal([]byte(raw), &probe) == nil {
		return json.RawMessage(raw), nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed arguments: %w", err)
	}
	if json.Unmarshal([]byte(repaired), &probe) != nil {
		return nil, fmt.Errorf("arguments unparseable after repair")
	}

	log.Debug().Int("original_bytes", len(raw)).Int("repaired_bytes", len(repaired)).Msg("repaired tool arguments")
	return json.RawMessage(repaired), nil
}
