package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
)

// ExerciseEntry is one analysed exercise photo within a week.
type ExerciseEntry struct {
	Date     time.Time
	Metadata metadata.ExerciseMetadata
}

// MealEntry is one analysed meal photo within a week.
type MealEntry struct {
	Date     time.Time
	Metadata metadata.DietMetadata
}

// WeekData is the input to the weekly analysis prompts.
type WeekData struct {
	WeekStart time.Time
	Exercises []ExerciseEntry
	Meals     []MealEntry
}

// LoggedDays counts distinct calendar days with at least one entry.
func (w WeekData) LoggedDays() int {
	days := make(map[string]struct{})
	for _, e := range w.Exercises {
		days[e.Date.Format("2006-01-02")] = struct{}{}
	}
	for _, m := range w.Meals {
		days[m.Date.Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}

// Sufficient reports whether the week has enough data for a full analysis.
func (w WeekData) Sufficient() bool {
	return w.LoggedDays() >= MinLoggedDays
}

// Render writes the week as a stable, line-oriented listing.
func (w WeekData) Render() string {
	var b strings.Builder

	b.WriteString("[운동 기록]\n")
	exercises := sortedByDate(w.Exercises, func(e ExerciseEntry) time.Time { return e.Date })
	if len(exercises) == 0 {
		b.WriteString("- 없음\n")
	}
	for _, e := range exercises {
		m := e.Metadata
		fmt.Fprintf(&b, "- %s: %s, %s, %s, %s\n",
			e.Date.Format("01-02 Mon"),
			orDash(m.ExerciseType),
			minutes(m.DurationMinutes),
			orDash((*string)(m.TimePeriod)),
			orDash((*string)(m.Intensity)))
	}

	b.WriteString("\n[식단 기록]\n")
	meals := sortedByDate(w.Meals, func(m MealEntry) time.Time { return m.Date })
	if len(meals) == 0 {
		b.WriteString("- 없음\n")
	}
	for _, e := range meals {
		m := e.Metadata
		ingredients := "-"
		if len(m.MainIngredients) > 0 {
			ingredients = strings.Join(m.MainIngredients, "/")
		}
		fmt.Fprintf(&b, "- %s: %s (%s), %s\n",
			e.Date.Format("01-02 Mon"),
			orDash(m.FoodName),
			ingredients,
			kcal(m.EstimatedCalories))
	}
	return b.String()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func minutes(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d분", *v)
}

func kcal(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%dkcal", *v)
}
