package fallback

import (
	"testing"
	"time"

	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestSynthesizer() *Synthesizer {
	return New(nil).WithClock(func() time.Time { return fixedNow })
}

func TestSynthesize_Exercise(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType string
		wantDur  int
	}{
		{"keyword and minutes", "사진 속 인물은 공원에서 러닝 중이며 약 45분 정도 운동한 것으로 보입니다", "러닝", 45},
		{"english alias", "Looks like a yoga session of 30 min", "요가", 30},
		{"duration out of range", "수영 600분", "수영", 0},
		{"keyword only", "헬스장에서 찍은 사진", "웨이트 트레이닝", 0},
	}

	s := newTestSynthesizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := s.Synthesize(tt.raw, metadata.DomainExercise).(*metadata.ExerciseMetadata)
			if m.ExerciseType == nil || *m.ExerciseType != tt.wantType {
				t.Errorf("exerciseType = %v, want %q", m.ExerciseType, tt.wantType)
			}
			if tt.wantDur == 0 {
				if m.DurationMinutes != nil {
					t.Errorf("duration = %d, want nil", *m.DurationMinutes)
				}
			} else if m.DurationMinutes == nil || *m.DurationMinutes != tt.wantDur {
				t.Errorf("duration = %v, want %d", m.DurationMinutes, tt.wantDur)
			}
			if m.TimePeriod != nil || m.Intensity != nil {
				t.Error("fallback should not fill time period or intensity")
			}
			if m.ConfidenceScore != Confidence {
				t.Errorf("confidence = %v", m.ConfidenceScore)
			}
		})
	}
}

func TestSynthesize_Diet(t *testing.T) {
	s := newTestSynthesizer()
	m := s.Synthesize("김치찌개 한 그릇, 대략 1,200 kcal 입니다", metadata.DomainDiet).(*metadata.DietMetadata)
	if m.FoodName == nil || *m.FoodName != "김치찌개" {
		t.Errorf("foodName = %v", m.FoodName)
	}
	if m.EstimatedCalories == nil || *m.EstimatedCalories != 1200 {
		t.Errorf("calories = %v", m.EstimatedCalories)
	}
	if len(m.MainIngredients) != 0 {
		t.Errorf("ingredients = %v", m.MainIngredients)
	}
	if !m.InRange() {
		t.Error("record out of range")
	}
}

func TestSynthesize_NothingRecognisable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		d    metadata.Domain
	}{
		{"refusal", "I cannot describe this image.", metadata.DomainExercise},
		{"refusal diet", "I cannot describe this image.", metadata.DomainDiet},
		{"dance inside guidance", "I cannot provide guidance about this image.", metadata.DomainExercise},
		{"run inside truncated", "The photo was truncated, please retry.", metadata.DomainExercise},
		{"walk inside sidewalk", "Taken from the sidewalk at night.", metadata.DomainExercise},
		{"rice inside price", "Sorry, the price tag hides the plate.", metadata.DomainDiet},
		{"pasta inside antipastas", "Nothing but antipastas wrappers here.", metadata.DomainDiet},
		{"empty", "", metadata.DomainDiet},
	}

	s := newTestSynthesizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.Synthesize(tt.raw, tt.d)
			if !rec.Empty() {
				t.Errorf("expected all-null record, got %+v", rec)
			}
			if rec.Confidence() != Confidence {
				t.Errorf("confidence = %v, want %v", rec.Confidence(), Confidence)
			}
			if rec.Domain() != tt.d {
				t.Errorf("domain = %s, want %s", rec.Domain(), tt.d)
			}
		})
	}
}

func TestSynthesize_WordBoundaries(t *testing.T) {
	s := newTestSynthesizer()

	ex := s.Synthesize("Two runs today, roughly 25 min each.", metadata.DomainExercise).(*metadata.ExerciseMetadata)
	if ex.ExerciseType == nil || *ex.ExerciseType != "러닝" {
		t.Errorf("exerciseType = %v, want 러닝", ex.ExerciseType)
	}

	diet := s.Synthesize("Fried rice with egg, about 700 kcal.", metadata.DomainDiet).(*metadata.DietMetadata)
	if diet.FoodName == nil || *diet.FoodName != "rice" {
		t.Errorf("foodName = %v, want rice", diet.FoodName)
	}
}
