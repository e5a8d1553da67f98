// Package render turns a campaign's editor document into email HTML. The
// document is either raw HTML (passed through untouched) or a JSON block
// list produced by the campaign editor. Personalization variables survive
// rendering; they are substituted per recipient at fan-out time.
package render

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// block is one editor node.
type block struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Level int    `json:"level,omitempty"`
	URL   string `json:"url,omitempty"`
	Label string `json:"label,omitempty"`
	Src   string `json:"src,omitempty"`
	Alt   string `json:"alt,omitempty"`
}

type document struct {
	Blocks []block `json:"blocks"`
}

// HTMLRenderer implements the campaign renderer.
type HTMLRenderer struct{}

// New creates a renderer.
func New() *HTMLRenderer { return &HTMLRenderer{} }

// Render produces the campaign HTML body.
func (r *HTMLRenderer) Render(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "<") {
		return content, nil
	}

	var doc document
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return "", fmt.Errorf("parsing campaign document: %w", err)
	}

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family:sans-serif;margin:0;padding:24px;">`)
	for _, blk := range doc.Blocks {
		if err := renderBlock(&b, blk); err != nil {
			return "", err
		}
	}
	b.WriteString(`<p style="font-size:12px;color:#888;"><a href="{{ unsubscribeUrl }}">Unsubscribe</a></p>`)
	b.WriteString(`</body></html>`)
	return b.String(), nil
}

func renderBlock(b *strings.Builder, blk block) error {
	switch blk.Type {
	case "heading":
		level := blk.Level
		if level < 1 || level > 6 {
			level = 1
		}
		fmt.Fprintf(b, "<h%d>%s</h%d>", level, html.EscapeString(blk.Text), level)
	case "text", "paragraph":
		fmt.Fprintf(b, "<p>%s</p>", html.EscapeString(blk.Text))
	case "button":
		fmt.Fprintf(b,
			`<a href=%q style="display:inline-block;padding:10px 20px;background:#111;color:#fff;text-decoration:none;border-radius:4px;">%s</a>`,
			blk.URL, html.EscapeString(blk.Label))
	case "image":
		fmt.Fprintf(b, `<img src=%q alt=%q style="max-width:100%%;"/>`, blk.Src, html.EscapeString(blk.Alt))
	case "divider":
		b.WriteString("<hr/>")
	default:
		return fmt.Errorf("unknown block type %q", blk.Type)
	}
	return nil
}
