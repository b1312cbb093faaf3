// Package fallback derives low-confidence metadata from model text that could
// not be parsed, so a failed extraction still yields something.
package fallback

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
)

// Confidence is assigned to every synthesized record regardless of content.
const Confidence = 0.1

var (
	durationPattern = regexp.MustCompile(`(\d+)\s*(?:분|min)`)
	caloriePattern  = regexp.MustCompile(`(\d[\d,]*)\s*(?:칼로리|kcal|cal|Cal)`)
)

type Synthesizer struct {
	now    func() time.Time
	logger *slog.Logger
}

func New(logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{now: time.Now, logger: logger.With("component", "fallback")}
}

// WithClock returns a copy using now for extractedAt.
func (s *Synthesizer) WithClock(now func() time.Time) *Synthesizer {
	c := *s
	c.now = now
	return &c
}

// Synthesize scans raw for a known label and a number with a unit. At most
// two fields are filled; the record always carries Confidence.
func (s *Synthesizer) Synthesize(raw string, d metadata.Domain) metadata.Record {
	now := s.now().UTC()
	var rec metadata.Record
	if d == metadata.DomainDiet {
		rec = s.diet(raw, now)
	} else {
		rec = s.exercise(raw, now)
	}
	rec.SetConfidence(Confidence)

	s.logger.Info("synthesized fallback metadata",
		"domain", d,
		"empty", rec.Empty(),
		"response_len", len(raw))
	return rec
}

func (s *Synthesizer) exercise(raw string, now time.Time) *metadata.ExerciseMetadata {
	m := metadata.NewExercise(now)
	if c, ok := metadata.FindExercise(raw); ok {
		name := c.CanonicalName
		m.ExerciseType = &name
	}
	if n, ok := firstNumber(durationPattern, raw); ok && metadata.ValidDuration(n) {
		m.DurationMinutes = &n
	}
	return m
}

func (s *Synthesizer) diet(raw string, now time.Time) *metadata.DietMetadata {
	m := metadata.NewDiet(now)
	if food, ok := metadata.FindFood(raw); ok {
		m.FoodName = &food
	}
	if n, ok := firstNumber(caloriePattern, raw); ok && metadata.ValidCalories(n) {
		m.EstimatedCalories = &n
	}
	return m
}

func firstNumber(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}
