package generator

import (
	"fmt"
	"strings"
)

// Creativity selects how much randomness the model is allowed.
type Creativity string

const (
	CreativityLow    Creativity = "low"
	CreativityMedium Creativity = "medium"
	CreativityHigh   Creativity = "high"
)

// Temperature maps the creativity level to the sampling temperature.
func (c Creativity) Temperature() float64 {
	switch c {
	case CreativityLow:
		return 0.3
	case CreativityHigh:
		return 0.9
	default:
		return 0.7
	}
}

// Funnel is the acquisition funnel the landing page serves.
type Funnel string

const (
	FunnelCapture Funnel = "capture"
	FunnelSales   Funnel = "sales"
)

// Ticket is the price tier of the offer.
type Ticket string

const (
	TicketLow    Ticket = "low"
	TicketMedium Ticket = "medium"
	TicketHigh   Ticket = "high"
)

// SectionKind only steers prompt guidance; the workflow ignores it.
type SectionKind string

const (
	KindHero         SectionKind = "hero"
	KindSocialProof  SectionKind = "social-proof"
	KindOffer        SectionKind = "offer"
	KindTestimonials SectionKind = "testimonials"
	KindGuarantee    SectionKind = "guarantee"
	KindFAQ          SectionKind = "faq"
	KindCustom       SectionKind = "custom"
)

// SectionKinds lists every kind in display order.
var SectionKinds = []SectionKind{
	KindHero, KindSocialProof, KindOffer, KindTestimonials, KindGuarantee, KindFAQ, KindCustom,
}

// Valid reports whether k is a known kind.
func (k SectionKind) Valid() bool {
	for _, known := range SectionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Brief is the user's description of what the copy must say.
type Brief struct {
	Prompt     string     `json:"prompt" yaml:"prompt" validate:"required"`
	VoiceTone  string     `json:"voice_tone" yaml:"voice_tone" validate:"required,oneof=professional casual persuasive funny inspirational friendly authoritative"`
	Platform   string     `json:"platform" yaml:"platform" validate:"required,oneof=instagram blog website email product ad social landing"`
	Length     string     `json:"length" yaml:"length" validate:"required,oneof=short medium long"`
	Keywords   []string   `json:"keywords" yaml:"keywords" validate:"max=10"`
	Creativity Creativity `json:"creativity" yaml:"creativity" validate:"omitempty,oneof=low medium high"`
}

// Normalize trims free text, deduplicates keywords and fills the default creativity.
func (b Brief) Normalize() Brief {
	b.Prompt = strings.TrimSpace(b.Prompt)
	b.VoiceTone = strings.TrimSpace(b.VoiceTone)
	b.Platform = strings.TrimSpace(b.Platform)
	b.Length = strings.TrimSpace(b.Length)
	b.Keywords = NormalizeKeywords(b.Keywords)
	if b.Creativity == "" {
		b.Creativity = CreativityMedium
	}
	return b
}

// NormalizeKeywords drops blanks and case-insensitive duplicates, keeping first-seen order.
func NormalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := strings.ToLower(k)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Landing carries the page-level marketing knobs.
type Landing struct {
	Funnel     Funnel `json:"funnel" yaml:"funnel" validate:"omitempty,oneof=capture sales"`
	Ticket     Ticket `json:"ticket" yaml:"ticket" validate:"omitempty,oneof=low medium high"`
	ClientInfo string `json:"client_info,omitempty" yaml:"client_info"`
}

// WithDefaults fills an unset funnel or ticket.
func (l Landing) WithDefaults() Landing {
	if l.Funnel == "" {
		l.Funnel = FunnelSales
	}
	if l.Ticket == "" {
		l.Ticket = TicketMedium
	}
	return l
}

// SectionOutline is the part of a ledger section the prompts need.
type SectionOutline struct {
	Name  string      `json:"name"`
	Kind  SectionKind `json:"kind"`
	Order int         `json:"order"`
}

// Request is the envelope for one generation or refinement call.
// It is rebuilt for every call from the session state.
type Request struct {
	Brief
	Landing
	Sections     []SectionOutline
	DocumentText string
	// PriorFeedback holds earlier refinement comments for the target section, oldest first.
	PriorFeedback []string
}

// Card is a titled block inside a variation.
type Card struct {
	Title string `json:"title" validate:"required"`
	Text  string `json:"text" validate:"required"`
}

// Variation is one proposed rendering of a section.
type Variation struct {
	Headline     string   `json:"headline" validate:"min=10"`
	Subheadline  string   `json:"subheadline" validate:"min=10"`
	MainText     string   `json:"mainText" validate:"min=20"`
	BulletPoints []string `json:"bulletPoints,omitempty"`
	Cards        []Card   `json:"cards,omitempty" validate:"dive"`
}

// DisplayText joins the variation into blank-line separated blocks.
func (v Variation) DisplayText() string {
	blocks := []string{v.Headline, v.Subheadline, v.MainText}
	if len(v.BulletPoints) > 0 {
		blocks = append(blocks, strings.Join(v.BulletPoints, "\n"))
	}
	if len(v.Cards) > 0 {
		lines := make([]string, len(v.Cards))
		for i, c := range v.Cards {
			lines[i] = c.Title + ": " + c.Text
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// VariationCount is the number of variations every call must return.
const VariationCount = 3

// Labels name the variations in presentation order.
var Labels = [VariationCount]string{"A", "B", "C"}

// ParseLabel converts "A", "b", ... into a variation index.
func ParseLabel(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, l := range Labels {
		if s == l {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown variation %q", s)
}

// Option is a value/label pair offered to the user.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var (
	VoiceToneOptions = []Option{
		{Value: "professional", Label: "Professional"},
		{Value: "casual", Label: "Casual"},
		{Value: "persuasive", Label: "Persuasive"},
		{Value: "funny", Label: "Funny"},
		{Value: "inspirational", Label: "Inspirational"},
		{Value: "friendly", Label: "Friendly"},
		{Value: "authoritative", Label: "Authoritative"},
	}
	PlatformOptions = []Option{
		{Value: "instagram", Label: "Instagram Caption"},
		{Value: "blog", Label: "Blog Post"},
		{Value: "website", Label: "Website Title"},
		{Value: "email", Label: "Email Marketing"},
		{Value: "product", Label: "Product Description"},
		{Value: "ad", Label: "Advertisement"},
		{Value: "social", Label: "Social Media Post"},
		{Value: "landing", Label: "Landing Page"},
	}
	LengthOptions = []Option{
		{Value: "short", Label: "Short (up to 50 words)"},
		{Value: "medium", Label: "Medium (50-150 words)"},
		{Value: "long", Label: "Long (150+ words)"},
	}
)
