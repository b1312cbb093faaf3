// Package gemini adapts the Gemini API (API-key auth) to ai.Generator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ripixel/fitglue-vision/pkg/ai"
)

const (
	BackendName  = "gemini"
	DefaultModel = "gemini-1.5-flash"
)

// Generator issues a single GenerateContent call per Generate.
type Generator struct {
	client *genai.Client
	model  string
}

// New dials the Gemini API with an API key.
func New(ctx context.Context, apiKey, model string) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Generator{client: client, model: model}, nil
}

func (g *Generator) Name() string { return BackendName }

func (g *Generator) Close() error { return g.client.Close() }

func (g *Generator) Generate(ctx context.Context, parts []ai.Part, cfg ai.SamplingConfig) (*ai.Response, error) {
	m := g.client.GenerativeModel(g.model)
	applySampling(&m.GenerationConfig, cfg)

	resp, err := m.GenerateContent(ctx, toParts(parts)...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return nil, ai.Blocked(BackendName, blockedReason(blocked), err)
		}
		return nil, ai.Wrap(BackendName, err)
	}
	return fromResponse(resp)
}

func applySampling(gc *genai.GenerationConfig, cfg ai.SamplingConfig) {
	if cfg.Temperature > 0 {
		gc.SetTemperature(cfg.Temperature)
	}
	if cfg.MaxOutputTokens > 0 {
		gc.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}
	if cfg.TopP > 0 {
		gc.SetTopP(cfg.TopP)
	}
	if cfg.TopK > 0 {
		gc.SetTopK(cfg.TopK)
	}
}

func toParts(parts []ai.Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.InlineData != nil {
			out = append(out, genai.Blob{MIMEType: p.InlineData.MediaType, Data: p.InlineData.Data})
			continue
		}
		out = append(out, genai.Text(p.Text))
	}
	return out
}

// fromResponse turns the first candidate into an ai.Response. Responses with no
// candidates or no text are reported as retryable empty responses.
func fromResponse(resp *genai.GenerateContentResponse) (*ai.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		reason := ai.TerminationUnspecified
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			reason = ai.TerminationBlockedPrompt
		}
		return nil, ai.EmptyResponse(BackendName, reason, "no candidates")
	}

	c := resp.Candidates[0]
	reason := terminationReason(c.FinishReason)
	text := candidateText(c)
	if strings.TrimSpace(text) == "" {
		return nil, ai.EmptyResponse(BackendName, reason, "candidate has no text")
	}

	signals := make([]ai.SafetySignal, 0, len(c.SafetyRatings))
	for _, r := range c.SafetyRatings {
		if r == nil {
			continue
		}
		signals = append(signals, ai.SafetySignal{
			Category:    r.Category.String(),
			Probability: r.Probability.String(),
			Blocked:     r.Blocked,
		})
	}

	return &ai.Response{Text: text, TerminationReason: reason, SafetySignals: signals}, nil
}

func candidateText(c *genai.Candidate) string {
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func terminationReason(fr genai.FinishReason) ai.TerminationReason {
	switch fr {
	case genai.FinishReasonStop:
		return ai.TerminationStop
	case genai.FinishReasonMaxTokens:
		return ai.TerminationMaxTokens
	case genai.FinishReasonSafety:
		return ai.TerminationSafety
	case genai.FinishReasonRecitation:
		return ai.TerminationRecitation
	case genai.FinishReasonUnspecified:
		return ai.TerminationUnspecified
	}
	return ai.TerminationOther
}

func blockedReason(b *genai.BlockedError) ai.TerminationReason {
	if b.Candidate != nil {
		return terminationReason(b.Candidate.FinishReason)
	}
	return ai.TerminationBlockedPrompt
}
