// Package anthropic provides an advisor.Provider backed by the Anthropic
// Claude API. The model is asked for a routing hint as a small JSON object;
// anything that cannot be parsed or falls below the confidence floor is
// reported as no advice.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/agenthub/advisor"
	"github.com/hupe1980/agenthub/messaging"
)

const systemPrompt = `You advise a multi-agent message hub on routing. Given a message summary and the candidate agents, answer with a single JSON object: {"target_agent": string, "confidence": number between 0 and 1, "reason": string}. Use an empty target_agent if the addressed agent is already the best choice.`

// Options configures the Anthropic advice provider (model id, max tokens,
// API key). Extend via functional options to preserve stability.
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
	// Candidates lists the agent ids the model may suggest. Optional; when
	// empty the model only scores the addressed agent.
	Candidates []string
}

// Provider asks Claude for routing hints behind the advisor.Provider interface.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// NewProvider creates a new Anthropic advice provider using the official client.
func NewProvider(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 256,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// NewProviderFromClient creates a new Anthropic advice provider from an existing client.
func NewProviderFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 256,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Advise implements advisor.Provider.
func (p *Provider) Advise(ctx context.Context, msg *messaging.Message) (*advisor.Advice, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.opts.Model,
		MaxTokens: p.opts.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(msg, p.opts.Candidates))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return parseAdvice(text.String())
}

// buildPrompt renders the message summary handed to the model.
func buildPrompt(msg *messaging.Message, candidates []string) string {
	summary := map[string]any{
		"from_agent":   msg.From,
		"to_agent":     msg.To,
		"message_type": string(msg.Type),
		"priority":     msg.Priority.String(),
		"workflow_id":  msg.WorkflowID,
	}
	if len(candidates) > 0 {
		summary["candidate_agents"] = candidates
	}
	raw, _ := json.Marshal(summary)
	return string(raw)
}

// parseAdvice extracts the JSON hint from the model output, tolerating
// surrounding prose by scanning for the outermost braces.
func parseAdvice(text string) (*advisor.Advice, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, advisor.ErrNoAdvice
	}

	var hint struct {
		TargetAgent string  `json:"target_agent"`
		Confidence  float64 `json:"confidence"`
		Reason      string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &hint); err != nil {
		return nil, advisor.ErrNoAdvice
	}
	if hint.Confidence < advisor.MinConfidence {
		return nil, advisor.ErrNoAdvice
	}

	return &advisor.Advice{
		TargetAgent: hint.TargetAgent,
		Confidence:  hint.Confidence,
		Hints:       map[string]any{"reason": hint.Reason},
	}, nil
}
