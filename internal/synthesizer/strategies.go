package synthesizer

import (
	"encoding/json"
	"regexp"
	"strings"
)

// candidate is one parsed test case before ids and weights are assigned.
type candidate struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation"`
	Difficulty  int    `json:"difficulty"`
}

const (
	minDifficulty = 1
	maxDifficulty = 5
	// midDifficulty is assumed whenever the model omits or mangles the field.
	midDifficulty = 3
)

// parseStrategy extracts up to limit candidates from the raw model
// response. Strategies are pure: they never error, they just return what
// they matched (possibly nothing), and the synthesizer tries them in order.
type parseStrategy func(raw string, limit int) []candidate

// parseStrategies is the resilience chain's parsing stages, strictest
// first.
var parseStrategies = []parseStrategy{
	parseArraySlice,
	parseObjectScan,
}

// parseArraySlice isolates the most plausible JSON array region, from the
// first '[' to the last ']', and decodes it. Models routinely wrap the
// array in prose or markdown fences; slicing tolerates both.
func parseArraySlice(raw string, limit int) []candidate {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || start >= end {
		return nil
	}

	var parsed []candidate
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil
	}

	if len(parsed) > limit {
		parsed = parsed[:limit]
	}
	for i := range parsed {
		parsed[i].Difficulty = clampDifficulty(parsed[i].Difficulty)
	}
	return parsed
}

// objectPattern matches the four-field object shape loosely enough to
// survive a response whose surrounding array syntax is broken.
var objectPattern = regexp.MustCompile(
	`\{\s*"input"\s*:\s*"([^"]*)"\s*,\s*"output"\s*:\s*"([^"]*)"\s*,` +
		`\s*"explanation"\s*:\s*"([^"]*)"\s*,\s*"difficulty"\s*:\s*(\d+)\s*\}`)

// parseObjectScan recovers individual test objects from malformed output
// by pattern-matching each one in isolation.
func parseObjectScan(raw string, limit int) []candidate {
	matches := objectPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	candidates := make([]candidate, 0, len(matches))
	for _, m := range matches {
		difficulty := midDifficulty
		if d, err := parseDigits(m[4]); err == nil {
			difficulty = clampDifficulty(d)
		}
		candidates = append(candidates, candidate{
			Input:       unescapeJSONString(m[1]),
			Output:      unescapeJSONString(m[2]),
			Explanation: unescapeJSONString(m[3]),
			Difficulty:  difficulty,
		})
	}
	return candidates
}

func clampDifficulty(d int) int {
	if d < minDifficulty || d > maxDifficulty {
		return midDifficulty
	}
	return d
}

func parseDigits(s string) (int, error) {
	var n int
	err := json.Unmarshal([]byte(s), &n)
	return n, err
}

// unescapeJSONString interprets the escapes inside a matched string body.
// Falls back to the raw text when the body is not a valid JSON string,
// since a mangled test input is still better than none.
func unescapeJSONString(body string) string {
	var s string
	if err := json.Unmarshal([]byte(`"`+body+`"`), &s); err != nil {
		return body
	}
	return s
}
