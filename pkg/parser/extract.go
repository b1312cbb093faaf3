package parser

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Fields is a loosely typed object recovered from model output. Numbers are
// kept as json.Number so integer values survive exactly.
type Fields map[string]any

// Strategy recovers Fields from raw text. Strategies are pure and tried in order.
type Strategy struct {
	Name    string
	Extract func(text string) (Fields, bool)
}

const (
	StrategyObject   = "json_object"
	StrategyArray    = "json_array"
	StrategyKeyValue = "key_value"
)

// DefaultStrategies is the extraction cascade: an embedded object, then an
// array holding one, then loose "key": value pairs.
var DefaultStrategies = []Strategy{
	{Name: StrategyObject, Extract: ExtractObject},
	{Name: StrategyArray, Extract: ExtractArray},
	{Name: StrategyKeyValue, Extract: ExtractPairs},
}

// StripCodeFences removes a surrounding markdown code fence, if any.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractObject returns the first balanced {...} substring that decodes as a
// JSON object. Objects inside arrays are left to ExtractArray.
func ExtractObject(text string) (Fields, bool) {
	text = StripCodeFences(text)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '[':
			if end := matchingClose(text, i, '[', ']'); end > 0 {
				i = end
			}
		case '{':
			end := matchingClose(text, i, '{', '}')
			if end < 0 {
				return nil, false
			}
			if f, ok := decodeObject(text[i : end+1]); ok {
				return f, true
			}
		}
	}
	return nil, false
}

// ExtractArray returns the first object element of the first JSON array found.
func ExtractArray(text string) (Fields, bool) {
	text = StripCodeFences(text)
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		end := matchingClose(text, i, '[', ']')
		if end < 0 {
			break
		}
		var items []any
		if err := decode(text[i:end+1], &items); err != nil {
			continue
		}
		for _, it := range items {
			if m, ok := it.(map[string]any); ok && len(m) > 0 {
				return Fields(m), true
			}
		}
	}
	return nil, false
}

var pairPattern = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"\s*:\s*("(?:[^"\\]|\\.)*"|-?\d+(?:\.\d+)?|true|false|null)`)

// ExtractPairs scans for "key": value tokens anywhere in the text. The first
// occurrence of a key wins.
func ExtractPairs(text string) (Fields, bool) {
	matches := pairPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, false
	}
	f := make(Fields, len(matches))
	for _, m := range matches {
		key := m[1]
		if _, seen := f[key]; seen {
			continue
		}
		v, ok := coerceToken(m[2])
		if !ok {
			continue
		}
		f[key] = v
	}
	return f, len(f) > 0
}

func coerceToken(tok string) (any, bool) {
	switch tok {
	case "null":
		return nil, true
	case "true":
		return true, true
	case "false":
		return false, true
	}
	if strings.HasPrefix(tok, `"`) {
		var s string
		if err := json.Unmarshal([]byte(tok), &s); err != nil {
			return nil, false
		}
		return s, true
	}
	return json.Number(tok), true
}

func decodeObject(s string) (Fields, bool) {
	var m map[string]any
	if err := decode(s, &m); err != nil || m == nil {
		return nil, false
	}
	return Fields(m), true
}

func decode(s string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	return dec.Decode(v)
}

// matchingClose returns the index of the bracket closing the one at start,
// skipping brackets inside string literals, or -1.
func matchingClose(s string, start int, open, closing byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
