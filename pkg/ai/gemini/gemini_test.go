package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/ripixel/fitglue-vision/pkg/ai"
)

func TestFromResponse(t *testing.T) {
	t.Run("text candidate", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content:      &genai.Content{Parts: []genai.Part{genai.Text(`{"exerciseType":`), genai.Text(`"러닝"}`)}},
				FinishReason: genai.FinishReasonStop,
				SafetyRatings: []*genai.SafetyRating{
					{Category: genai.HarmCategoryDangerousContent, Probability: genai.HarmProbabilityNegligible},
				},
			}},
		}
		got, err := fromResponse(resp)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Text != `{"exerciseType":"러닝"}` {
			t.Errorf("text = %q", got.Text)
		}
		if got.TerminationReason != ai.TerminationStop {
			t.Errorf("reason = %v", got.TerminationReason)
		}
		if len(got.SafetySignals) != 1 || got.SafetySignals[0].Blocked {
			t.Errorf("signals = %+v", got.SafetySignals)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := fromResponse(&genai.GenerateContentResponse{})
		var te *ai.TransportError
		if !errors.As(err, &te) || te.Class != ai.ClassEmpty {
			t.Fatalf("expected empty-response error, got %v", err)
		}
		if !te.Class.Retryable() {
			t.Error("empty responses should be retryable")
		}
	})

	t.Run("blocked prompt feedback", func(t *testing.T) {
		_, err := fromResponse(&genai.GenerateContentResponse{
			PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
		})
		var te *ai.TransportError
		if !errors.As(err, &te) || te.Reason != ai.TerminationBlockedPrompt {
			t.Fatalf("expected blocked_prompt reason, got %v", err)
		}
	})

	t.Run("candidate without text", func(t *testing.T) {
		_, err := fromResponse(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonMaxTokens}},
		})
		var te *ai.TransportError
		if !errors.As(err, &te) || te.Reason != ai.TerminationMaxTokens {
			t.Fatalf("expected max_tokens empty response, got %v", err)
		}
	})
}

func TestToParts(t *testing.T) {
	parts := toParts([]ai.Part{
		ai.TextPart("describe"),
		ai.ImagePart("image/jpeg", []byte{0xff, 0xd8}),
	})
	if len(parts) != 2 {
		t.Fatalf("len = %d", len(parts))
	}
	if txt, ok := parts[0].(genai.Text); !ok || string(txt) != "describe" {
		t.Errorf("part 0 = %#v", parts[0])
	}
	if blob, ok := parts[1].(genai.Blob); !ok || blob.MIMEType != "image/jpeg" || len(blob.Data) != 2 {
		t.Errorf("part 1 = %#v", parts[1])
	}
}

func TestApplySampling(t *testing.T) {
	var gc genai.GenerationConfig
	applySampling(&gc, ai.SamplingConfig{Temperature: 0.1, MaxOutputTokens: 512})
	if gc.Temperature == nil || *gc.Temperature != 0.1 {
		t.Errorf("temperature = %v", gc.Temperature)
	}
	if gc.MaxOutputTokens == nil || *gc.MaxOutputTokens != 512 {
		t.Errorf("max tokens = %v", gc.MaxOutputTokens)
	}
	if gc.TopP != nil || gc.TopK != nil {
		t.Error("zero values should leave backend defaults")
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New(context.Background(), "", ""); err == nil {
		t.Error("expected error without api key")
	}
}
