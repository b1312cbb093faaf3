package metadata

import (
	"strings"
	"unicode"
)

// ExerciseCategory is a known exercise label and the names it is reported under.
type ExerciseCategory struct {
	CanonicalName string
	Aliases       []string
	// TypicalMinutes is the plausible session length range used for confidence bonuses.
	TypicalMinutes [2]int
}

// ExerciseVocabulary contains the exercise categories the extractor recognises.
var ExerciseVocabulary = []ExerciseCategory{
	{CanonicalName: "러닝", Aliases: []string{"running", "run", "달리기", "조깅", "jogging", "마라톤", "트레드밀"}, TypicalMinutes: [2]int{10, 180}},
	{CanonicalName: "걷기", Aliases: []string{"walking", "walk", "산책", "워킹", "파워워킹"}, TypicalMinutes: [2]int{10, 180}},
	{CanonicalName: "자전거", Aliases: []string{"cycling", "bike", "사이클", "라이딩", "실내자전거", "스피닝"}, TypicalMinutes: [2]int{15, 240}},
	{CanonicalName: "수영", Aliases: []string{"swimming", "swim", "아쿠아로빅"}, TypicalMinutes: [2]int{15, 120}},
	{CanonicalName: "요가", Aliases: []string{"yoga"}, TypicalMinutes: [2]int{15, 120}},
	{CanonicalName: "필라테스", Aliases: []string{"pilates"}, TypicalMinutes: [2]int{20, 90}},
	{CanonicalName: "웨이트 트레이닝", Aliases: []string{"weight training", "weights", "헬스", "근력운동", "웨이트", "strength training"}, TypicalMinutes: [2]int{20, 150}},
	{CanonicalName: "등산", Aliases: []string{"hiking", "hike", "트레킹", "산행"}, TypicalMinutes: [2]int{30, 480}},
	{CanonicalName: "축구", Aliases: []string{"soccer", "football", "풋살"}, TypicalMinutes: [2]int{30, 150}},
	{CanonicalName: "농구", Aliases: []string{"basketball"}, TypicalMinutes: [2]int{20, 150}},
	{CanonicalName: "테니스", Aliases: []string{"tennis"}, TypicalMinutes: [2]int{30, 180}},
	{CanonicalName: "배드민턴", Aliases: []string{"badminton"}, TypicalMinutes: [2]int{20, 150}},
	{CanonicalName: "골프", Aliases: []string{"golf"}, TypicalMinutes: [2]int{30, 300}},
	{CanonicalName: "크로스핏", Aliases: []string{"crossfit", "hiit", "인터벌"}, TypicalMinutes: [2]int{10, 90}},
	{CanonicalName: "스트레칭", Aliases: []string{"stretching", "stretch"}, TypicalMinutes: [2]int{5, 60}},
	{CanonicalName: "홈트레이닝", Aliases: []string{"home workout", "홈트"}, TypicalMinutes: [2]int{10, 90}},
	{CanonicalName: "클라이밍", Aliases: []string{"climbing", "bouldering", "볼더링"}, TypicalMinutes: [2]int{30, 180}},
	{CanonicalName: "줄넘기", Aliases: []string{"jump rope", "skipping"}, TypicalMinutes: [2]int{5, 60}},
	{CanonicalName: "복싱", Aliases: []string{"boxing", "킥복싱"}, TypicalMinutes: [2]int{20, 120}},
	{CanonicalName: "댄스", Aliases: []string{"dance", "줌바", "zumba"}, TypicalMinutes: [2]int{20, 120}},
}

// Index from normalized name (canonical and aliases) to category.
var exerciseIndex map[string]*ExerciseCategory

func init() {
	exerciseIndex = make(map[string]*ExerciseCategory)
	for i := range ExerciseVocabulary {
		c := &ExerciseVocabulary[i]
		exerciseIndex[normalize(c.CanonicalName)] = c
		for _, a := range c.Aliases {
			exerciseIndex[normalize(a)] = c
		}
	}
}

// LookupExercise finds the category for a reported label. An exact (normalized)
// match wins; otherwise the longest vocabulary name contained in the label, or
// containing it, is used.
func LookupExercise(label string) (*ExerciseCategory, bool) {
	n := normalize(label)
	if n == "" {
		return nil, false
	}
	if c, ok := exerciseIndex[n]; ok {
		return c, true
	}
	if len([]rune(n)) < 2 {
		return nil, false
	}

	var best *ExerciseCategory
	bestLen := 0
	for name, c := range exerciseIndex {
		if len([]rune(name)) < 2 {
			continue
		}
		if strings.Contains(n, name) || strings.Contains(name, n) {
			// Ties broken by canonical name so map iteration order cannot leak.
			if l := len(name); l > bestLen || (l == bestLen && best != nil && c.CanonicalName < best.CanonicalName) {
				best, bestLen = c, l
			}
		}
	}
	return best, best != nil
}

// PlausibleExerciseLabel reports whether an unknown label is short enough to be a real name.
func PlausibleExerciseLabel(label string) bool {
	n := len([]rune(strings.TrimSpace(label)))
	return n >= MinExerciseLabelLen && n <= MaxExerciseLabelLen
}

// normalize lowercases and strips everything but letters, digits and single spaces.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case unicode.IsSpace(r) || r == '-' || r == '_':
			if !space && b.Len() > 0 {
				b.WriteRune(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// CanonicalExercise returns the canonical name when label is exactly a known
// name or alias, ignoring case and punctuation.
func CanonicalExercise(label string) (string, bool) {
	c, ok := exerciseIndex[normalize(label)]
	if !ok {
		return "", false
	}
	return c.CanonicalName, true
}

// FoodVocabulary lists dishes the keyword scan recognises, most specific first
// so that "김치찌개" wins over "김치".
var FoodVocabulary = []string{
	"김치찌개", "된장찌개", "순두부찌개", "부대찌개", "비빔밥", "김밥", "볶음밥", "불고기",
	"삼겹살", "닭가슴살", "떡볶이", "라면", "냉면", "칼국수", "짜장면", "짬뽕", "돈까스",
	"제육볶음", "갈비탕", "삼계탕", "샐러드", "샌드위치", "햄버거", "피자", "파스타",
	"스테이크", "초밥", "치킨", "오트밀", "요거트", "김치", "salad", "sandwich",
	"burger", "pizza", "pasta", "steak", "sushi", "chicken", "oatmeal", "rice",
}

// ExerciseKeywords and DietKeywords are domain terms whose presence in a model
// response suggests it actually described the photo.
var (
	ExerciseKeywords = []string{"운동", "exercise", "workout", "분", "minutes", "km", "심박", "heart rate", "pace", "페이스"}
	DietKeywords     = []string{"칼로리", "kcal", "calorie", "음식", "food", "식사", "meal", "재료", "ingredient"}
)

// Keywords returns the domain keyword list for d.
func Keywords(d Domain) []string {
	if d == DomainDiet {
		return DietKeywords
	}
	return ExerciseKeywords
}

// ContainsAny reports whether text contains any of the terms, case-insensitively.
func ContainsAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
