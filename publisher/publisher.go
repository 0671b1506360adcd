package publisher

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"landing_copy_studio/generator"
	"landing_copy_studio/workflow"
)

// Format selects how the final landing page is rendered.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts text, markdown/md and html; empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, markdown or html)", s)
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Ext is the file extension used when writing the page to disk.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	default:
		return ".txt"
	}
}

// Page is an assembled landing page.
type Page struct {
	Title    string
	Sections []workflow.FinalSection
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Render produces the page in the requested format.
func Render(p Page, f Format) (string, error) {
	switch f {
	case FormatText:
		return Text(p), nil
	case FormatMarkdown:
		return Markdown(p), nil
	case FormatHTML:
		return HTML(p)
	}
	return "", fmt.Errorf("unknown format %q", f)
}

// Text renders each section's display text under its name.
func Text(p Page) string {
	var b strings.Builder
	if p.Title != "" {
		b.WriteString(p.Title)
		b.WriteString("\n\n")
	}
	for i, s := range p.Sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.ToUpper(s.Section.Name))
		b.WriteString("\n\n")
		b.WriteString(s.Text)
	}
	return b.String()
}

// Markdown renders the page with one second-level heading per section.
func Markdown(p Page) string {
	var b strings.Builder
	if p.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", p.Title)
	}
	for _, s := range p.Sections {
		fmt.Fprintf(&b, "## %s\n\n", s.Section.Name)
		writeVariation(&b, s.Variation)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeVariation(b *strings.Builder, v generator.Variation) {
	fmt.Fprintf(b, "### %s\n\n", v.Headline)
	fmt.Fprintf(b, "*%s*\n\n", v.Subheadline)
	b.WriteString(v.MainText)
	b.WriteString("\n\n")
	for _, bp := range v.BulletPoints {
		fmt.Fprintf(b, "- %s\n", bp)
	}
	if len(v.BulletPoints) > 0 {
		b.WriteString("\n")
	}
	for _, c := range v.Cards {
		fmt.Fprintf(b, "- **%s**: %s\n", c.Title, c.Text)
	}
	if len(v.Cards) > 0 {
		b.WriteString("\n")
	}
}

// HTML renders the Markdown form into a standalone document.
func HTML(p Page) (string, error) {
	body, err := mdToHTML(Markdown(p))
	if err != nil {
		return "", err
	}
	title := p.Title
	if title == "" {
		title = "Landing page"
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

func mdToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteFile renders p and writes it to path, creating parent directories.
// An empty extension gets the format's default.
func WriteFile(path string, p Page, f Format) (string, error) {
	out, err := Render(p, f)
	if err != nil {
		return "", err
	}
	if filepath.Ext(path) == "" {
		path += f.Ext()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
