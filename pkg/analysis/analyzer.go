// Package analysis produces the free-text weekly review of a user's logged
// exercise and meals.
package analysis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ripixel/fitglue-vision/pkg/ai"
	apperrors "github.com/ripixel/fitglue-vision/pkg/errors"
	"github.com/ripixel/fitglue-vision/pkg/prompt"
)

// Generator is satisfied by *ai.Client.
type Generator interface {
	Generate(ctx context.Context, parts []ai.Part, cfg ai.SamplingConfig) (*ai.Response, error)
}

// Report is the model's weekly feedback.
type Report struct {
	Text       string
	LoggedDays int
	// Sufficient is false when the week was too sparse and the model was asked
	// for encouragement instead of a review.
	Sufficient bool
	Attempts   int
}

type Analyzer struct {
	client   Generator
	composer prompt.Composer
	logger   *slog.Logger
}

func NewAnalyzer(client Generator, composer prompt.Composer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{client: client, composer: composer, logger: logger.With("component", "analysis")}
}

// Analyze picks the review or the encouragement prompt by logged-day count and
// returns the model's text. Failures are ai_service ExtractionErrors.
func (a *Analyzer) Analyze(ctx context.Context, week prompt.WeekData) (*Report, error) {
	days := week.LoggedDays()
	sufficient := week.Sufficient()

	text := a.composer.InsufficientDataPrompt(week)
	if sufficient {
		text = a.composer.AnalysisPrompt(week)
	}

	resp, err := a.client.Generate(ctx, []ai.Part{ai.TextPart(text)}, ai.AnalysisSampling)
	if err != nil {
		failure := apperrors.Normalize(err)
		if failure.Kind == apperrors.KindUnknown {
			failure = apperrors.Wrap(err, apperrors.KindAIService, "weekly analysis failed")
		}
		a.logger.Warn("Weekly analysis failed", "error", failure, "logged_days", days)
		return nil, failure
	}

	out := strings.TrimSpace(resp.Text)
	if out == "" {
		return nil, apperrors.ErrAIEmptyResponse.WithMetadata("termination_reason", string(resp.TerminationReason))
	}

	a.logger.Info("Weekly analysis generated",
		"logged_days", days,
		"sufficient", sufficient,
		"response_len", len(out),
		"attempts", resp.Attempts)

	return &Report{Text: out, LoggedDays: days, Sufficient: sufficient, Attempts: resp.Attempts}, nil
}
