package metadata

import (
	"fmt"
	"strings"
	"time"
)

// Domain selects the prompt, vocabulary and validation rules for an extraction.
type Domain string

const (
	DomainExercise Domain = "exercise"
	DomainDiet     Domain = "diet"
)

// ParseDomain accepts the canonical names plus a few friendly aliases.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exercise", "workout", "운동":
		return DomainExercise, nil
	case "diet", "meal", "food", "식단":
		return DomainDiet, nil
	}
	return "", fmt.Errorf("unknown extraction domain %q", s)
}

// Domain ranges. Values outside these are dropped to null, never clamped.
const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 480

	MinExerciseLabelLen = 2
	MaxExerciseLabelLen = 19

	MaxFoodNameLen   = 50
	MaxIngredients   = 2
	MaxIngredientLen = 20

	MinCalories = 1
	MaxCalories = 5000
)

// ExerciseMetadata is the structured result for an exercise photo.
type ExerciseMetadata struct {
	ExerciseType    *string     `json:"exerciseType" firestore:"exercise_type"`
	DurationMinutes *int        `json:"durationMinutes" firestore:"duration_minutes"`
	TimePeriod      *TimePeriod `json:"timePeriod" firestore:"time_period"`
	Intensity       *Intensity  `json:"intensity" firestore:"intensity"`
	ConfidenceScore float64     `json:"confidenceScore" firestore:"confidence_score"`
	ExtractedAt     time.Time   `json:"extractedAt" firestore:"extracted_at"`
}

// DietMetadata is the structured result for a meal photo.
type DietMetadata struct {
	FoodName          *string   `json:"foodName" firestore:"food_name"`
	MainIngredients   []string  `json:"mainIngredients" firestore:"main_ingredients"`
	EstimatedCalories *int      `json:"estimatedCalories" firestore:"estimated_calories"`
	ConfidenceScore   float64   `json:"confidenceScore" firestore:"confidence_score"`
	ExtractedAt       time.Time `json:"extractedAt" firestore:"extracted_at"`
}

// Record is implemented by both metadata shapes so callers can handle them uniformly.
type Record interface {
	Domain() Domain
	Confidence() float64
	// SetConfidence stores a score, clamped to [0,1].
	SetConfidence(v float64)
	// Empty reports whether every extracted field is null.
	Empty() bool
}

func (m *ExerciseMetadata) Domain() Domain      { return DomainExercise }
func (m *ExerciseMetadata) Confidence() float64 { return m.ConfidenceScore }
func (m *ExerciseMetadata) SetConfidence(v float64) {
	m.ConfidenceScore = clampScore(v)
}
func (m *ExerciseMetadata) Empty() bool {
	return m.ExerciseType == nil && m.DurationMinutes == nil && m.TimePeriod == nil && m.Intensity == nil
}

func (m *DietMetadata) Domain() Domain      { return DomainDiet }
func (m *DietMetadata) Confidence() float64 { return m.ConfidenceScore }
func (m *DietMetadata) SetConfidence(v float64) {
	m.ConfidenceScore = clampScore(v)
}
func (m *DietMetadata) Empty() bool {
	return m.FoodName == nil && len(m.MainIngredients) == 0 && m.EstimatedCalories == nil
}

// InRange reports whether every non-null field lies within its declared domain range.
func (m *ExerciseMetadata) InRange() bool {
	if m.DurationMinutes != nil && !ValidDuration(*m.DurationMinutes) {
		return false
	}
	if m.TimePeriod != nil && !m.TimePeriod.Valid() {
		return false
	}
	if m.Intensity != nil && !m.Intensity.Valid() {
		return false
	}
	return m.ConfidenceScore >= 0 && m.ConfidenceScore <= 1
}

// InRange reports whether every non-null field lies within its declared domain range.
func (m *DietMetadata) InRange() bool {
	if m.FoodName != nil && !ValidFoodName(*m.FoodName) {
		return false
	}
	if len(m.MainIngredients) > MaxIngredients {
		return false
	}
	for _, ing := range m.MainIngredients {
		if !ValidIngredient(ing) {
			return false
		}
	}
	if m.EstimatedCalories != nil && !ValidCalories(*m.EstimatedCalories) {
		return false
	}
	return m.ConfidenceScore >= 0 && m.ConfidenceScore <= 1
}

func clampScore(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func ValidDuration(v int) bool { return v >= MinDurationMinutes && v <= MaxDurationMinutes }
func ValidCalories(v int) bool { return v >= MinCalories && v <= MaxCalories }

func ValidFoodName(s string) bool {
	n := len([]rune(s))
	return n >= 1 && n <= MaxFoodNameLen
}

func ValidIngredient(s string) bool {
	n := len([]rune(s))
	return n >= 1 && n <= MaxIngredientLen
}

// NewExercise returns an all-null exercise record stamped with now.
func NewExercise(now time.Time) *ExerciseMetadata {
	return &ExerciseMetadata{ExtractedAt: now}
}

// NewDiet returns an all-null diet record stamped with now.
func NewDiet(now time.Time) *DietMetadata {
	return &DietMetadata{MainIngredients: []string{}, ExtractedAt: now}
}

// NewEmpty returns an all-null record for the given domain.
func NewEmpty(d Domain, now time.Time) Record {
	if d == DomainDiet {
		return NewDiet(now)
	}
	return NewExercise(now)
}
