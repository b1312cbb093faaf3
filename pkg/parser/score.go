package parser

import (
	"math"

	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
)

// Scorer assigns a [0,1] confidence to a normalized record. raw is the model
// text the record came from.
type Scorer interface {
	Score(rec metadata.Record, raw string) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(rec metadata.Record, raw string) float64

func (f ScorerFunc) Score(rec metadata.Record, raw string) float64 { return f(rec, raw) }

// Weights for HeuristicScorer. These are a placeholder policy, not calibrated.
const (
	weightExerciseType = 0.40
	weightDuration     = 0.25
	weightTimePeriod   = 0.20
	weightIntensity    = 0.15

	weightFoodName    = 0.40
	weightIngredients = 0.30
	weightCalories    = 0.30

	bonus = 0.05
)

// Plausible single-meal calorie band for the specificity bonus.
const (
	mealCaloriesLow  = 100
	mealCaloriesHigh = 2000
)

// HeuristicScorer sums field weights plus small bonuses for specific values and
// for domain keywords in the raw text, divided by the maximum achievable given
// which bonuses applied.
type HeuristicScorer struct{}

func (HeuristicScorer) Score(rec metadata.Record, raw string) float64 {
	if rec == nil || rec.Empty() {
		return 0
	}

	var earned, possible float64
	add := func(present bool, w float64) {
		possible += w
		if present {
			earned += w
		}
	}
	applyBonus := func(ok bool) {
		if ok {
			earned += bonus
			possible += bonus
		}
	}

	switch m := rec.(type) {
	case *metadata.ExerciseMetadata:
		add(m.ExerciseType != nil, weightExerciseType)
		add(m.DurationMinutes != nil, weightDuration)
		add(m.TimePeriod != nil, weightTimePeriod)
		add(m.Intensity != nil, weightIntensity)

		var cat *metadata.ExerciseCategory
		if m.ExerciseType != nil {
			cat, _ = metadata.LookupExercise(*m.ExerciseType)
		}
		applyBonus(cat != nil)
		applyBonus(cat != nil && m.DurationMinutes != nil &&
			*m.DurationMinutes >= cat.TypicalMinutes[0] && *m.DurationMinutes <= cat.TypicalMinutes[1])

	case *metadata.DietMetadata:
		add(m.FoodName != nil, weightFoodName)
		add(len(m.MainIngredients) > 0, weightIngredients)
		add(m.EstimatedCalories != nil, weightCalories)

		applyBonus(m.FoodName != nil && metadata.ContainsAny(*m.FoodName, metadata.FoodVocabulary))
		applyBonus(m.EstimatedCalories != nil &&
			*m.EstimatedCalories >= mealCaloriesLow && *m.EstimatedCalories <= mealCaloriesHigh)

	default:
		return 0
	}
	applyBonus(metadata.ContainsAny(raw, metadata.Keywords(rec.Domain())))

	if possible == 0 {
		return 0
	}
	return clamp01(math.Round(earned/possible*100) / 100)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
