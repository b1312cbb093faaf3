// Package metadata defines the typed records produced by photo extraction,
// their value ranges and the controlled vocabularies used to validate them.
package metadata

import "strings"

// TimePeriod is the part of the day an exercise took place.
type TimePeriod string

const (
	TimePeriodMorning   TimePeriod = "morning"
	TimePeriodAfternoon TimePeriod = "afternoon"
	TimePeriodEvening   TimePeriod = "evening"
	TimePeriodDawn      TimePeriod = "dawn"
	TimePeriodNight     TimePeriod = "night"
)

// Intensity is the perceived effort of an exercise.
type Intensity string

const (
	IntensityLow      Intensity = "low"
	IntensityModerate Intensity = "moderate"
	IntensityHigh     Intensity = "high"
)

var timePeriodAliases = map[string]TimePeriod{
	"morning":   TimePeriodMorning,
	"오전":        TimePeriodMorning,
	"아침":        TimePeriodMorning,
	"afternoon": TimePeriodAfternoon,
	"오후":        TimePeriodAfternoon,
	"점심":        TimePeriodAfternoon,
	"낮":         TimePeriodAfternoon,
	"evening":   TimePeriodEvening,
	"저녁":        TimePeriodEvening,
	"dawn":      TimePeriodDawn,
	"새벽":        TimePeriodDawn,
	"night":     TimePeriodNight,
	"밤":         TimePeriodNight,
	"야간":        TimePeriodNight,
}

var intensityAliases = map[string]Intensity{
	"low":      IntensityLow,
	"light":    IntensityLow,
	"easy":     IntensityLow,
	"낮음":       IntensityLow,
	"가벼움":      IntensityLow,
	"저강도":      IntensityLow,
	"moderate": IntensityModerate,
	"medium":   IntensityModerate,
	"보통":       IntensityModerate,
	"중간":       IntensityModerate,
	"중강도":      IntensityModerate,
	"high":     IntensityHigh,
	"hard":     IntensityHigh,
	"intense":  IntensityHigh,
	"높음":       IntensityHigh,
	"강함":       IntensityHigh,
	"고강도":      IntensityHigh,
}

// ParseTimePeriod maps canonical names and Korean/English aliases onto the enum.
func ParseTimePeriod(s string) (TimePeriod, bool) {
	tp, ok := timePeriodAliases[strings.ToLower(strings.TrimSpace(s))]
	return tp, ok
}

// ParseIntensity maps canonical names and Korean/English aliases onto the enum.
func ParseIntensity(s string) (Intensity, bool) {
	in, ok := intensityAliases[strings.ToLower(strings.TrimSpace(s))]
	return in, ok
}

func (t TimePeriod) Valid() bool {
	switch t {
	case TimePeriodMorning, TimePeriodAfternoon, TimePeriodEvening, TimePeriodDawn, TimePeriodNight:
		return true
	}
	return false
}

func (i Intensity) Valid() bool {
	switch i {
	case IntensityLow, IntensityModerate, IntensityHigh:
		return true
	}
	return false
}
