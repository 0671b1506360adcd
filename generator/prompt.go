package generator

import (
	"fmt"
	"strings"
)

// Prompt is the message set sent to the LLM.
type Prompt struct {
	System      string
	User        string
	History     []Message
	Temperature float64
}

// Message is an optional history entry.
type Message struct {
	Role    string
	Content string
}

type ticketGuide struct {
	Focus string
	Tone  string
}

var ticketGuides = map[Ticket]ticketGuide{
	TicketLow:    {Focus: "Immediate benefits and ease of access", Tone: "Direct and approachable"},
	TicketMedium: {Focus: "Added value and differentiation", Tone: "Professional and persuasive"},
	TicketHigh:   {Focus: "Transformation and exclusivity", Tone: "Authoritative and sophisticated"},
}

type funnelGuide struct {
	Focus       string
	MainCTA     string
	SocialProof string
}

var funnelGuides = map[Funnel]funnelGuide{
	FunnelCapture: {Focus: "Lead generation and engagement", MainCTA: "Capture interest", SocialProof: "Relevant but not excessive"},
	FunnelSales:   {Focus: "Direct conversion and closing", MainCTA: "Buy now", SocialProof: "Intense and convincing"},
}

var lengthGuides = map[string]string{
	"short":  "up to 50 words of main text",
	"medium": "50 to 150 words of main text",
	"long":   "more than 150 words of main text",
}

const variationSchema = `{
  "variations": [
    {
      "headline": "The headline that grabs attention",
      "subheadline": "The sub-headline that promises the core benefit",
      "mainText": "A short supporting paragraph that backs the promise.",
      "bulletPoints": ["Quick benefit 1", "Clear benefit 2", "Tangible benefit 3"],
      "cards": [{"title": "Card mini title", "text": "Card explanation."}]
    }
  ]
}`

func systemInstruction(req Request) string {
	landing := req.Landing.WithDefaults()
	ticket := ticketGuides[landing.Ticket]
	funnel := funnelGuides[landing.Funnel]

	var sb strings.Builder
	sb.WriteString("You are a chief copywriter specialised in direct-response marketing. ")
	sb.WriteString("Write landing page copy that converts, is specific to the client and respects the reader's intelligence.\n\n")
	if req.DocumentText != "" {
		sb.WriteString("Client document (primary source of truth):\n")
		sb.WriteString(req.DocumentText)
		sb.WriteString("\n\n")
	} else {
		sb.WriteString("No client document was provided; rely on the brief.\n\n")
	}
	if req.ClientInfo != "" {
		sb.WriteString(fmt.Sprintf("Client information: %s\n\n", req.ClientInfo))
	}
	sb.WriteString("Principles:\n")
	sb.WriteString("- Clarity over cleverness; every word must sell.\n")
	sb.WriteString("- Benefits over features.\n")
	sb.WriteString("- Credibility first: no claims the client cannot back.\n\n")
	sb.WriteString(fmt.Sprintf("Ticket %s: focus on %s. Tone: %s.\n", landing.Ticket, ticket.Focus, ticket.Tone))
	sb.WriteString(fmt.Sprintf("Funnel %s: focus on %s. Main CTA: %s. Social proof: %s.\n\n", landing.Funnel, funnel.Focus, funnel.MainCTA, funnel.SocialProof))
	sb.WriteString("Answer with strict JSON only, no commentary and no Markdown fences.")
	return sb.String()
}

// sectionGuidance picks the brief for one section. The kind wins; the name is a
// fallback for sections left as custom.
func sectionGuidance(name string, kind SectionKind) string {
	if kind == "" || kind == KindCustom {
		kind = guessKind(name)
	}
	switch kind {
	case KindHero:
		return `HERO section, main focus:
- Headline: high impact, grabs attention immediately
- Sub-headline: clear promise of the main benefit
- Main text: the problem the product solves
- Bullet points: 3-4 main benefits
- Cards: main features or modules`
	case KindSocialProof:
		return `SOCIAL PROOF section, credibility:
- Headline: results and transformations
- Sub-headline: numbers, statistics or endorsements
- Main text: success stories and proven results
- Bullet points: specific benefits achieved
- Cards: endorsements, numbers or case studies`
	case KindOffer:
		return `OFFER section, conversion:
- Headline: value and urgency
- Sub-headline: the specific offer and exclusive benefits
- Main text: offer details and guarantees
- Bullet points: what is included
- Cards: bonuses, guarantees or special deals`
	case KindTestimonials:
		return `TESTIMONIALS section, trust:
- Headline: real transformations
- Sub-headline: specific customer results
- Main text: detailed success stories
- Bullet points: specific benefits customers mention
- Cards: detailed testimonials with names`
	case KindGuarantee:
		return `GUARANTEE section, risk reversal:
- Headline: the promise that removes risk
- Sub-headline: the exact terms in plain words
- Main text: why the client can afford this guarantee
- Bullet points: what the guarantee covers
- Cards: guarantee conditions`
	case KindFAQ:
		return `FAQ section, objections:
- Headline: resolving common doubts
- Sub-headline: reassurance and clarity
- Main text: explanation of the product or service
- Bullet points: frequently asked questions answered
- Cards: specific questions with detailed answers`
	}
	return fmt.Sprintf(`CUSTOM section - %s:
- Headline: specific focus for this section
- Sub-headline: benefit related to the section
- Main text: content relevant to the context
- Bullet points: points specific to the section
- Cards: elements unique to this section`, name)
}

func guessKind(name string) SectionKind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "hero"), strings.Contains(n, "main"):
		return KindHero
	case strings.Contains(n, "proof"), strings.Contains(n, "social"):
		return KindSocialProof
	case strings.Contains(n, "offer"), strings.Contains(n, "product"), strings.Contains(n, "pricing"):
		return KindOffer
	case strings.Contains(n, "testimonial"):
		return KindTestimonials
	case strings.Contains(n, "guarantee"):
		return KindGuarantee
	case strings.Contains(n, "faq"), strings.Contains(n, "question"):
		return KindFAQ
	}
	return KindCustom
}

func kindOf(req Request, sectionName string) SectionKind {
	for _, s := range req.Sections {
		if s.Name == sectionName {
			return s.Kind
		}
	}
	return KindCustom
}

// BuildGenerationPrompt asks for three fresh variations of one section.
func BuildGenerationPrompt(req Request, sectionName string) Prompt {
	landing := req.Landing.WithDefaults()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write 3 complete variations for the landing page section %q.\n\n", sectionName))
	sb.WriteString(sectionGuidance(sectionName, kindOf(req, sectionName)))
	sb.WriteString("\n\nParameters:\n")
	sb.WriteString(fmt.Sprintf("- Section: %s\n", sectionName))
	sb.WriteString(fmt.Sprintf("- Funnel: %s\n", landing.Funnel))
	sb.WriteString(fmt.Sprintf("- Ticket: %s\n", landing.Ticket))
	sb.WriteString(fmt.Sprintf("- Voice tone: %s\n", req.VoiceTone))
	sb.WriteString(fmt.Sprintf("- Platform: %s\n", req.Platform))
	if g, ok := lengthGuides[req.Length]; ok {
		sb.WriteString(fmt.Sprintf("- Length: %s\n", g))
	}
	sb.WriteString(fmt.Sprintf("- Brief: %s\n", req.Prompt))
	if len(req.Keywords) > 0 {
		sb.WriteString(fmt.Sprintf("- Keywords: %s\n", strings.Join(req.Keywords, ", ")))
	}
	if len(req.Sections) > 1 {
		names := make([]string, 0, len(req.Sections))
		for _, s := range req.Sections {
			names = append(names, s.Name)
		}
		sb.WriteString(fmt.Sprintf("- Page structure: %s\n", strings.Join(names, " > ")))
	}
	sb.WriteString(fmt.Sprintf("\nEach variation takes a different angle and is specific to %q. Do not repeat content from other sections.\n", sectionName))
	sb.WriteString("- Variation A: focus on the problem or pain\n")
	sb.WriteString("- Variation B: focus on the solution or benefit\n")
	sb.WriteString("- Variation C: focus on the result or transformation\n\n")
	sb.WriteString("Required JSON structure:\n")
	sb.WriteString(variationSchema)
	sb.WriteString("\n\nReturn exactly 3 variations. Headline and sub-headline need at least 10 characters, main text at least 20. ")
	sb.WriteString("Omit \"cards\" or \"bulletPoints\" when the section does not need them.")

	return Prompt{
		System:      systemInstruction(req),
		User:        sb.String(),
		Temperature: req.Creativity.Temperature(),
	}
}

// BuildRevisionPrompt asks for a refined set built from one variation and the user's feedback.
func BuildRevisionPrompt(req Request, sectionName, feedback string, current Variation) Prompt {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Refine the variation of the section %q based on the feedback.\n\n", sectionName))
	sb.WriteString(fmt.Sprintf("CLIENT FEEDBACK: %s\n\n", feedback))
	sb.WriteString("CURRENT COPY:\n")
	sb.WriteString(fmt.Sprintf("- Headline: %s\n", current.Headline))
	sb.WriteString(fmt.Sprintf("- Sub-headline: %s\n", current.Subheadline))
	sb.WriteString(fmt.Sprintf("- Main text: %s\n", current.MainText))
	if len(current.BulletPoints) > 0 {
		sb.WriteString(fmt.Sprintf("- Bullet points: %s\n", strings.Join(current.BulletPoints, ", ")))
	}
	if len(current.Cards) > 0 {
		cards := make([]string, len(current.Cards))
		for i, c := range current.Cards {
			cards[i] = c.Title + ": " + c.Text
		}
		sb.WriteString(fmt.Sprintf("- Cards: %s\n", strings.Join(cards, ", ")))
	}
	sb.WriteString("\nApply the feedback while keeping the quality and professional tone. ")
	sb.WriteString("Return 3 variations: the refined copy first, then two alternatives in the same direction.\n\n")
	sb.WriteString("Required JSON structure:\n")
	sb.WriteString(variationSchema)

	// earlier feedback for the same section keeps the refinement consistent
	var history []Message
	for _, f := range req.PriorFeedback {
		if strings.TrimSpace(f) == "" {
			continue
		}
		history = append(history, Message{Role: "user", Content: "Earlier feedback: " + f})
	}

	return Prompt{
		System:      systemInstruction(req),
		User:        sb.String(),
		History:     history,
		Temperature: req.Creativity.Temperature(),
	}
}
