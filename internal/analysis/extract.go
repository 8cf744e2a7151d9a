package analysis

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSON pulls a JSON object out of a model reply that may wrap it in
// code fences or prose. Fences are stripped first, then the outermost
// {...} span is taken.
func ExtractJSON(content string) (string, error) {
	s := strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", errors.New(errors.ErrAIInvalidResponse, "no JSON object in model response")
	}
	s = s[start : end+1]

	if !gjson.Valid(s) {
		return "", errors.New(errors.ErrAIInvalidResponse, "malformed JSON in model response")
	}
	return s, nil
}

// optionalNumber returns the value at path when it is a JSON number.
func optionalNumber(doc gjson.Result, path string) *float64 {
	v := doc.Get(path)
	if v.Type != gjson.Number {
		return nil
	}
	f := v.Float()
	return &f
}

func stringList(doc gjson.Result, path string) []string {
	out := []string{}
	doc.Get(path).ForEach(func(_, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}
