package metadata

import (
	"strings"
	"unicode"
)

// Free-text scanning for the fallback path. Vocabulary names only match at
// token boundaries: a Latin name must equal a whole word (a trailing plural
// "s"/"es" is tolerated), a Hangul name must start a word so that attached
// particles ("헬스장에서", "러닝을") still count.

type tokenClass int

const (
	classNone tokenClass = iota
	classHangul
	classLatin
	classDigit
)

func classOf(r rune) tokenClass {
	switch {
	case unicode.Is(unicode.Hangul, r):
		return classHangul
	case unicode.IsDigit(r):
		return classDigit
	case unicode.IsLetter(r):
		return classLatin
	}
	return classNone
}

type token struct {
	text  string
	class tokenClass
}

// tokenize lowercases s and splits it on punctuation, whitespace and script
// changes, so "30min" and "yoga수업" each yield two tokens.
func tokenize(s string) []token {
	var out []token
	var b strings.Builder
	cur := classNone
	flush := func() {
		if b.Len() > 0 {
			out = append(out, token{text: b.String(), class: cur})
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		c := classOf(r)
		if c != cur {
			flush()
			cur = c
		}
		if c != classNone {
			b.WriteRune(r)
		}
	}
	flush()
	return out
}

// matchAt reports whether name occurs in text starting at token i.
func matchAt(text []token, i int, name []token) bool {
	if len(name) == 0 || i+len(name) > len(text) {
		return false
	}
	last := len(name) - 1
	for j, n := range name {
		t := text[i+j]
		if t.class != n.class {
			return false
		}
		if j < last {
			if t.text != n.text {
				return false
			}
			continue
		}
		switch n.class {
		case classHangul:
			if !strings.HasPrefix(t.text, n.text) {
				return false
			}
		default:
			if t.text != n.text && t.text != n.text+"s" && t.text != n.text+"es" {
				return false
			}
		}
	}
	return true
}

// containsName reports whether name appears in text at a token boundary.
// Names shorter than two runes never match.
func containsName(text []token, name string) bool {
	if len([]rune(strings.TrimSpace(name))) < 2 {
		return false
	}
	n := tokenize(name)
	for i := range text {
		if matchAt(text, i, n) {
			return true
		}
	}
	return false
}

// FindExercise scans free text for an exercise name or alias. The longest
// matching name wins.
func FindExercise(text string) (*ExerciseCategory, bool) {
	toks := tokenize(text)
	if len(toks) == 0 {
		return nil, false
	}
	var best *ExerciseCategory
	bestLen := 0
	for i := range ExerciseVocabulary {
		c := &ExerciseVocabulary[i]
		for _, name := range append([]string{c.CanonicalName}, c.Aliases...) {
			if l := len([]rune(name)); l > bestLen && containsName(toks, name) {
				best, bestLen = c, l
			}
		}
	}
	return best, best != nil
}

// FindFood returns the first FoodVocabulary entry present in free text.
func FindFood(text string) (string, bool) {
	toks := tokenize(text)
	for _, food := range FoodVocabulary {
		if containsName(toks, food) {
			return food, true
		}
	}
	return "", false
}
