// Package openai provides an advisor.Provider backed by the OpenAI Chat
// Completions API, mirroring the Anthropic provider's prompt and parsing
// contract.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agenthub/advisor"
	"github.com/hupe1980/agenthub/messaging"
	"github.com/openai/openai-go"
)

const systemPrompt = `You advise a multi-agent message hub on routing. Given a message summary and the candidate agents, answer with a single JSON object: {"target_agent": string, "confidence": number between 0 and 1, "reason": string}. Use an empty target_agent if the addressed agent is already the best choice.`

// Options configure the OpenAI advice provider. Fields mirror a minimal
// subset of Chat Completion parameters; extend via functional options without
// breaking callers.
type Options struct {
	Model               string
	MaxCompletionTokens int64
	// Candidates lists the agent ids the model may suggest. Optional.
	Candidates []string
}

// Provider asks an OpenAI chat model for routing hints behind the
// advisor.Provider interface.
type Provider struct {
	client *openai.Client
	opts   Options
}

// NewProvider creates a new OpenAI advice provider using the official client.
func NewProvider(optFns ...func(o *Options)) *Provider {
	client := openai.NewClient()
	return NewProviderFromClient(&client, optFns...)
}

// NewProviderFromClient creates a new OpenAI advice provider from an existing client.
func NewProviderFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		MaxCompletionTokens: 256,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Advise implements advisor.Provider.
func (p *Provider) Advise(ctx context.Context, msg *messaging.Message) (*advisor.Advice, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               p.opts.Model,
		MaxCompletionTokens: openai.Int(p.opts.MaxCompletionTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(msg, p.opts.Candidates)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, advisor.ErrNoAdvice
	}
	return parseAdvice(resp.Choices[0].Message.Content)
}

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
