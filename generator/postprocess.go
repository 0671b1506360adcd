package generator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*(.*?)\\s*```$")

// PostProcess decodes the model output and enforces the variation contract.
func PostProcess(raw string) ([]Variation, error) {
	text := extractJSON(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrContract)
	}

	var set variationSet
	if err := json.Unmarshal([]byte(text), &set); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrContract, err)
	}
	for i := range set.Variations {
		set.Variations[i] = tidy(set.Variations[i])
	}
	if err := ValidateVariations(set.Variations); err != nil {
		return nil, err
	}
	return set.Variations, nil
}

// extractJSON strips Markdown fences and any chatter around the JSON object.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(text); len(m) == 2 {
		text = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(text, "{") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

func tidy(v Variation) Variation {
	v.Headline = strings.TrimSpace(v.Headline)
	v.Subheadline = strings.TrimSpace(v.Subheadline)
	v.MainText = strings.TrimSpace(v.MainText)
	var bullets []string
	for _, b := range v.BulletPoints {
		if b = strings.TrimSpace(b); b != "" {
			bullets = append(bullets, b)
		}
	}
	v.BulletPoints = bullets
	for i := range v.Cards {
		v.Cards[i].Title = strings.TrimSpace(v.Cards[i].Title)
		v.Cards[i].Text = strings.TrimSpace(v.Cards[i].Text)
	}
	return v
}
