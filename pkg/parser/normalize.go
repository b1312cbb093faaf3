package parser

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
)

// Accepted spellings per field, canonical first.
var (
	keysExerciseType = []string{"exerciseType", "exercise_type", "exercise", "activity", "type"}
	keysDuration     = []string{"duration", "durationMinutes", "duration_minutes", "minutes"}
	keysTimePeriod   = []string{"timePeriod", "time_period", "timeOfDay", "time_of_day"}
	keysIntensity    = []string{"intensity", "level"}
	keysFoodName     = []string{"foodName", "food_name", "food", "dish", "menu"}
	keysIngredients  = []string{"mainIngredients", "main_ingredients", "ingredients"}
	keysCalories     = []string{"estimatedCalories", "estimated_calories", "calories", "kcal"}
)

// NormalizeExercise validates raw fields into an exercise record. Values outside
// their domain are dropped to nil; nothing is clamped.
func NormalizeExercise(f Fields, now time.Time) *metadata.ExerciseMetadata {
	m := metadata.NewExercise(now)

	if s, ok := asString(lookup(f, keysExerciseType)); ok {
		if label, ok := exerciseLabel(s); ok {
			m.ExerciseType = &label
		}
	}
	if n, ok := asMinutes(lookup(f, keysDuration)); ok && metadata.ValidDuration(n) {
		m.DurationMinutes = &n
	}
	if s, ok := asString(lookup(f, keysTimePeriod)); ok {
		if tp, ok := metadata.ParseTimePeriod(s); ok {
			m.TimePeriod = &tp
		}
	}
	if s, ok := asString(lookup(f, keysIntensity)); ok {
		if in, ok := metadata.ParseIntensity(s); ok {
			m.Intensity = &in
		}
	}
	return m
}

// NormalizeDiet validates raw fields into a diet record.
func NormalizeDiet(f Fields, now time.Time) *metadata.DietMetadata {
	m := metadata.NewDiet(now)

	if s, ok := asString(lookup(f, keysFoodName)); ok && metadata.ValidFoodName(s) {
		m.FoodName = &s
	}
	m.MainIngredients = ingredients(lookup(f, keysIngredients))
	if n, ok := asInt(lookup(f, keysCalories)); ok && metadata.ValidCalories(n) {
		m.EstimatedCalories = &n
	}
	return m
}

// exerciseLabel accepts exact vocabulary names (returned canonical), plausible
// short labels as written, and long labels containing a known name.
func exerciseLabel(s string) (string, bool) {
	if name, ok := metadata.CanonicalExercise(s); ok {
		return name, true
	}
	if metadata.PlausibleExerciseLabel(s) {
		return s, true
	}
	if c, ok := metadata.LookupExercise(s); ok {
		return c.CanonicalName, true
	}
	return "", false
}

func ingredients(v any) []string {
	var raw []string
	switch t := v.(type) {
	case []any:
		for _, it := range t {
			if s, ok := asString(it); ok {
				raw = append(raw, s)
			}
		}
	case string:
		for _, part := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == '/' || r == '、' }) {
			if s, ok := asString(part); ok {
				raw = append(raw, s)
			}
		}
	}

	out := make([]string, 0, metadata.MaxIngredients)
	for _, s := range raw {
		if len(out) == metadata.MaxIngredients {
			break
		}
		if metadata.ValidIngredient(s) {
			out = append(out, s)
		}
	}
	return out
}

func lookup(f Fields, keys []string) any {
	for _, k := range keys {
		if v, ok := f[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// Values models use to mean "no answer".
var placeholders = map[string]bool{
	"unknown": true, "none": true, "n/a": true, "null": true, "-": true,
	"없음": true, "알 수 없음": true, "모름": true, "불명": true,
}

// asString accepts only strings that carry at least one letter. Numbers are
// never labels: {"exerciseType": 30} leaves the field absent.
func asString(v any) (string, bool) {
	t, ok := v.(string)
	if !ok {
		return "", false
	}
	s := strings.TrimSpace(t)
	if s == "" || placeholders[strings.ToLower(s)] || !strings.ContainsFunc(s, unicode.IsLetter) {
		return "", false
	}
	return s, true
}

var (
	numberPattern  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	hoursPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:시간|hours?|hrs?)`)
	minutesPattern = regexp.MustCompile(`(\d+)\s*(?:분|min)`)
)

// asInt accepts JSON numbers and strings carrying a number such as "450kcal"
// or "1,200". Decimals are rounded.
func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		return roundNumber(string(t))
	case float64:
		return roundFloat(t)
	case int:
		return t, true
	case string:
		m := numberPattern.FindString(strings.ReplaceAll(t, ",", ""))
		if m == "" {
			return 0, false
		}
		return roundNumber(m)
	}
	return 0, false
}

// asMinutes is asInt with hour units understood: "1시간 30분" is 90.
func asMinutes(v any) (int, bool) {
	s, ok := v.(string)
	if !ok {
		return asInt(v)
	}
	h := hoursPattern.FindStringSubmatch(s)
	if h == nil {
		return asInt(s)
	}
	hours, err := strconv.ParseFloat(h[1], 64)
	if err != nil {
		return 0, false
	}
	total := hours * 60
	if m := minutesPattern.FindStringSubmatch(s[strings.Index(s, h[0])+len(h[0]):]); m != nil {
		mins, _ := strconv.Atoi(m[1])
		total += float64(mins)
	}
	return roundFloat(total)
}

func roundNumber(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return roundFloat(f)
}

func roundFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(math.Round(f)), true
}
