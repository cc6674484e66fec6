package emotion

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseScores extracts an emotion score object from model output.
// It tolerates markdown code fences, surrounding prose, a wrapping
// {"emotion": {...}} object and label synonyms. Scores are normalized to
// sum to 1, since models rarely return a proper distribution.
func ParseScores(text string) (Scores, error) {
	raw := extractJSON(text)
	if raw == "" || !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrNoScores)
	}

	obj := gjson.Parse(raw)
	if nested := obj.Get("emotion"); nested.IsObject() {
		obj = nested
	} else if nested := obj.Get("emotions"); nested.IsObject() {
		obj = nested
	}

	scores := make(Scores)
	obj.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.Number {
			return true
		}
		scores[canonical(key.String())] = value.Float()
		return true
	})

	if len(scores) == 0 {
		return nil, ErrNoScores
	}
	return Normalize(scores), nil
}

// extractJSON strips code fences and returns the outermost {...} span.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
