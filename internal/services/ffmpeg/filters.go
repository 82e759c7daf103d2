package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

type overlay struct {
	text   string
	size   int
	colour string
	y      string
}

// overlays returns the text layers drawn by each template:
// A is headline plus category, B the before/after paragraph and C the impact
// line. Every template closes with the call to action.
func overlays(comp Composition) []overlay {
	var layers []overlay
	switch strings.ToUpper(strings.TrimSpace(comp.Template)) {
	case TemplateB:
		layers = []overlay{
			{text: comp.WhatHappened, size: 50, colour: "white", y: "400"},
			{text: comp.WhatHappensNext, size: 42, colour: "0xdddddd", y: "h/2+120"},
		}
	case TemplateC:
		layers = []overlay{
			{text: comp.WhyItMatters, size: 45, colour: "white", y: "500"},
		}
	default:
		layers = []overlay{
			{text: comp.Hook, size: 60, colour: "white", y: "200"},
			{text: strings.ToUpper(comp.Category), size: 40, colour: "0x888888", y: "120"},
		}
	}
	layers = append(layers, overlay{text: comp.CTALine, size: 40, colour: "0xffcc00", y: "h-320"})
	return layers
}

func (c *Client) filter(comp Composition) string {
	parts := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", c.width, c.height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", c.width, c.height),
		"setsar=1",
	}
	for _, layer := range overlays(comp) {
		text := strings.TrimSpace(layer.text)
		if text == "" {
			continue
		}
		parts = append(parts, c.drawtext(layer, wrapText(text, columnsFor(c.width, layer.size))))
	}
	return strings.Join(parts, ",")
}

func (c *Client) drawtext(layer overlay, text string) string {
	var b strings.Builder
	b.WriteString("drawtext=expansion=none:text=")
	b.WriteString(escapeValue(text))
	if c.fontFile != "" {
		b.WriteString(":fontfile=")
		b.WriteString(escapeValue(c.fontFile))
	}
	fmt.Fprintf(&b, ":fontsize=%d:fontcolor=%s:line_spacing=12", layer.size, layer.colour)
	b.WriteString(":box=1:boxcolor=black@0.45:boxborderw=18")
	fmt.Fprintf(&b, ":x=(w-text_w)/2:y=%s", layer.y)
	return b.String()
}

// columnsFor estimates how many character cells fit across the frame at a
// font size, keeping a margin on both sides.
func columnsFor(width, fontSize int) int {
	if fontSize <= 0 {
		return 24
	}
	cols := (width * 85 / 100) / (fontSize * 55 / 100)
	return max(cols, 10)
}

// wrapText breaks text on word boundaries so no line is wider than cols
// terminal cells. Words longer than a line are split by cell width.
func wrapText(text string, cols int) string {
	words := strings.Fields(text)
	var (
		lines []string
		line  string
	)
	for _, word := range words {
		for runewidth.StringWidth(word) > cols {
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			head := runewidth.Truncate(word, cols, "")
			lines = append(lines, head)
			word = word[len(head):]
		}
		switch {
		case line == "":
			line = word
		case runewidth.StringWidth(line)+1+runewidth.StringWidth(word) <= cols:
			line += " " + word
		default:
			lines = append(lines, line)
			line = word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Filter option values pass through two parsers: the filter's own option
// list and then the filtergraph. Each needs its own escaping.
var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)

func escapeValue(value string) string {
	return graphEscaper.Replace(optionEscaper.Replace(value))
}
