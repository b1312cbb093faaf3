// Package prompt builds the extraction and weekly-analysis prompts.
//
// Everything here is pure: identical inputs always produce identical prompts.
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
)

const (
	DefaultMaxChars = 8000

	// MinLoggedDays is the fewest distinct days a week needs for a full analysis.
	MinLoggedDays = 3
)

// Composer renders prompts under a character budget.
type Composer struct {
	MaxChars int
}

// Default is the composer used by the package-level helpers.
var Default = Composer{MaxChars: DefaultMaxChars}

func ExercisePrompt() string { return Default.ExercisePrompt() }

func DietPrompt() string { return Default.DietPrompt() }

func AnalysisPrompt(week WeekData) string { return Default.AnalysisPrompt(week) }

func InsufficientDataPrompt(week WeekData) string { return Default.InsufficientDataPrompt(week) }

// ForDomain returns the extraction prompt for d.
func (c Composer) ForDomain(d metadata.Domain) string {
	if d == metadata.DomainDiet {
		return c.DietPrompt()
	}
	return c.ExercisePrompt()
}

func (c Composer) ExercisePrompt() string {
	var b strings.Builder
	b.WriteString("당신은 운동 기록 사진을 분석하는 도우미입니다.\n")
	b.WriteString("사진(운동 앱 화면, 운동 기구, 운동 중인 모습 등)을 보고 아래 항목을 추출하세요.\n\n")
	b.WriteString("반드시 다음 JSON 객체 하나만 출력하세요. 설명이나 코드 블록은 붙이지 마세요.\n")
	b.WriteString("{\n")
	b.WriteString(`  "exerciseType": 운동 종류 (예: ` + exerciseExamples() + `) 또는 null,` + "\n")
	fmt.Fprintf(&b, "  \"duration\": 운동 시간(분, %d~%d 사이 정수) 또는 null,\n", metadata.MinDurationMinutes, metadata.MaxDurationMinutes)
	b.WriteString(`  "timePeriod": "오전" | "오후" | "저녁" | "새벽" | "밤" 또는 null,` + "\n")
	b.WriteString(`  "intensity": "낮음" | "보통" | "높음" 또는 null` + "\n")
	b.WriteString("}\n\n")
	b.WriteString("사진에서 확인할 수 없는 항목은 추측하지 말고 null로 두세요.")
	return c.fit(b.String())
}

func (c Composer) DietPrompt() string {
	var b strings.Builder
	b.WriteString("당신은 식단 사진을 분석하는 영양 도우미입니다.\n")
	b.WriteString("사진 속 음식을 보고 아래 항목을 추출하세요.\n\n")
	b.WriteString("반드시 다음 JSON 객체 하나만 출력하세요. 설명이나 코드 블록은 붙이지 마세요.\n")
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  \"foodName\": 대표 음식 이름(%d자 이하) 또는 null,\n", metadata.MaxFoodNameLen)
	fmt.Fprintf(&b, "  \"mainIngredients\": 주재료 최대 %d개(각 %d자 이하) 배열,\n", metadata.MaxIngredients, metadata.MaxIngredientLen)
	fmt.Fprintf(&b, "  \"estimatedCalories\": 1인분 추정 칼로리(kcal, %d~%d 사이 정수) 또는 null\n", metadata.MinCalories, metadata.MaxCalories)
	b.WriteString("}\n\n")
	b.WriteString("음식이 보이지 않으면 모든 값을 null로 두고 mainIngredients는 빈 배열로 두세요.")
	return c.fit(b.String())
}

// AnalysisPrompt asks for a weekly review of a week with enough logged days.
func (c Composer) AnalysisPrompt(week WeekData) string {
	var b strings.Builder
	b.WriteString("당신은 사용자의 한 주 운동과 식단 기록을 돌아보는 건강 코치입니다.\n")
	fmt.Fprintf(&b, "아래는 %s 주간 기록입니다. 기록된 날: %d일.\n\n", week.WeekStart.Format("2006-01-02"), week.LoggedDays())
	b.WriteString("다음 내용을 한국어로 5문장 이내로 작성하세요.\n")
	b.WriteString("1. 이번 주 운동 패턴 요약\n")
	b.WriteString("2. 식단의 특징과 칼로리 경향\n")
	b.WriteString("3. 다음 주를 위한 구체적인 제안 한 가지\n\n")
	b.WriteString(week.Render())
	return c.fit(b.String())
}

// InsufficientDataPrompt asks for an encouraging note when the week is too sparse to review.
func (c Composer) InsufficientDataPrompt(week WeekData) string {
	var b strings.Builder
	b.WriteString("당신은 친절한 건강 코치입니다.\n")
	fmt.Fprintf(&b, "사용자는 %s 주에 %d일만 기록했습니다 (분석에는 최소 %d일 필요).\n",
		week.WeekStart.Format("2006-01-02"), week.LoggedDays(), MinLoggedDays)
	b.WriteString("지금까지의 기록을 짧게 언급하고, 다음 주에 기록을 꾸준히 남기도록 3문장 이내로 격려하세요.\n\n")
	b.WriteString(week.Render())
	return c.fit(b.String())
}

func (c Composer) fit(s string) string {
	limit := c.MaxChars
	if limit <= 0 {
		limit = DefaultMaxChars
	}
	return Truncate(s, limit)
}

// Truncate cuts s to at most limit characters, appending a marker that states
// how much was dropped. The marker counts toward limit.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	// The marker length depends on the omitted count, so iterate to a fixed point.
	omitted := len(r) - limit
	for {
		marker := []rune(truncationMarker(omitted))
		keep := limit - len(marker)
		if keep < 0 {
			return string(marker[:limit])
		}
		if len(r)-keep == omitted {
			return string(r[:keep]) + string(marker)
		}
		omitted = len(r) - keep
	}
}

func truncationMarker(omitted int) string {
	return fmt.Sprintf("\n[truncated: %d characters omitted]", omitted)
}

func exerciseExamples() string {
	names := make([]string, 0, 6)
	for i, c := range metadata.ExerciseVocabulary {
		if i == 6 {
			break
		}
		names = append(names, `"`+c.CanonicalName+`"`)
	}
	return strings.Join(names, ", ")
}

// sortedByDate returns a copy of entries ordered by date, stable for equal dates.
func sortedByDate[T any](entries []T, date func(T) time.Time) []T {
	out := make([]T, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return date(out[i]).Before(date(out[j])) })
	return out
}
