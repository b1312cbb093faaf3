// Package ai wraps a multimodal generative endpoint behind a small interface
// and adds bounded concurrency, dispatch spacing and classified retries.
package ai

import "context"

// Part is one element of a request: either text or inline image data.
type Part struct {
	Text       string
	InlineData *InlineData
}

// InlineData carries raw media bytes; backends handle any transport encoding.
type InlineData struct {
	MediaType string
	Data      []byte
}

func TextPart(s string) Part {
	return Part{Text: s}
}

func ImagePart(mediaType string, data []byte) Part {
	return Part{InlineData: &InlineData{MediaType: mediaType, Data: data}}
}

// SamplingConfig holds the generation parameters sent with each request.
// Zero values are left to the backend default.
type SamplingConfig struct {
	Temperature     float32
	MaxOutputTokens int32
	TopP            float32
	TopK            int32
}

// ExtractionSampling is tuned for short, deterministic JSON answers.
var ExtractionSampling = SamplingConfig{
	Temperature:     0.1,
	MaxOutputTokens: 1024,
	TopP:            0.8,
	TopK:            40,
}

// AnalysisSampling allows a little more variety for free-text feedback.
var AnalysisSampling = SamplingConfig{
	Temperature:     0.7,
	MaxOutputTokens: 2048,
	TopP:            0.95,
	TopK:            40,
}

// TerminationReason is why the model stopped generating.
type TerminationReason string

const (
	TerminationUnspecified   TerminationReason = "unspecified"
	TerminationStop          TerminationReason = "stop"
	TerminationMaxTokens     TerminationReason = "max_tokens"
	TerminationSafety        TerminationReason = "safety"
	TerminationRecitation    TerminationReason = "recitation"
	TerminationBlockedPrompt TerminationReason = "blocked_prompt"
	TerminationOther         TerminationReason = "other"
)

// SafetySignal is one safety rating attached to a response.
type SafetySignal struct {
	Category    string
	Probability string
	Blocked     bool
}

// Response is the text answer of one successful generation.
type Response struct {
	Text              string
	TerminationReason TerminationReason
	SafetySignals     []SafetySignal
	// Attempts is filled in by Client with the number of calls it took.
	Attempts int
}

// Generator is a single, unretried call to a generative backend.
// Implementations return *TransportError for failures they can classify.
type Generator interface {
	Generate(ctx context.Context, parts []Part, cfg SamplingConfig) (*Response, error)
	Name() string
}
