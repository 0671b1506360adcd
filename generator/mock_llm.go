package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

var sectionRe = regexp.MustCompile(`section "([^"]+)"`)

// MockLLM is a local stand-in that never calls an external model. It answers
// every prompt with three contract-valid variations naming the section.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	section := "landing page"
	if sm := sectionRe.FindStringSubmatch(prompt.User); len(sm) == 2 {
		section = sm[1]
	}
	angles := []string{"the problem", "the solution", "the result"}
	set := variationSet{Variations: make([]Variation, 0, len(angles))}
	for i, angle := range angles {
		set.Variations = append(set.Variations, Variation{
			Headline:     fmt.Sprintf("%s: variation %s", section, Labels[i]),
			Subheadline:  fmt.Sprintf("A %s sub-headline about %s", section, angle),
			MainText:     fmt.Sprintf("Placeholder copy for %s written around %s.", section, angle),
			BulletPoints: []string{"First benefit", "Second benefit", "Third benefit"},
		})
	}
	out, err := json.Marshal(set)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
