package publish

import (
	"strings"

	"orbix/internal/config"
	"orbix/internal/store"
)

// Platform limits and defaults.
const (
	MaxTitleRunes = 100
	CategoryID    = "24"
)

// Metadata is the platform-independent description of one upload.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Visibility  string
}

// BuildMetadata renders the title, description and tags of a candidate. A
// reviewer-edited hook replaces the generated one.
func BuildMetadata(c store.PublishCandidate, brand config.Brand, visibility string) Metadata {
	hook := c.Script.Hook
	if edited := strings.TrimSpace(c.EditedHook); edited != "" {
		hook = edited
	}
	tags := []string{}
	if brand.Name != "" {
		tags = append(tags, brand.Name)
	}
	if c.Category != "" {
		tags = append(tags, c.Category)
	}
	return Metadata{
		Title:       Title(hook, c.Category),
		Description: Description(c.Script, brand),
		Tags:        tags,
		CategoryID:  CategoryID,
		Visibility:  visibility,
	}
}

// Title formats "{hook} | {category}", shortening the hook so the result
// fits MaxTitleRunes.
func Title(hook, category string) string {
	hook = strings.Join(strings.Fields(hook), " ")
	category = strings.TrimSpace(category)
	suffix := ""
	if category != "" {
		suffix = " | " + category
	}
	budget := MaxTitleRunes - len([]rune(suffix))
	if budget <= 0 {
		return truncateRunes(hook+suffix, MaxTitleRunes)
	}
	if runes := []rune(hook); len(runes) > budget {
		hook = strings.TrimSpace(string(runes[:budget-1])) + "…"
	}
	return hook + suffix
}

// Description joins the script body and the brand footer.
func Description(script store.Script, brand config.Brand) string {
	var b strings.Builder
	for _, part := range []string{script.WhatHappened, script.WhyItMatters, script.WhatHappensNext, script.CTALine} {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteString(part)
			b.WriteString("\n\n")
		}
	}
	b.WriteString("---\n")
	b.WriteString(brand.Name)
	if brand.Tagline != "" {
		b.WriteString("\n")
		b.WriteString(brand.Tagline)
	}
	b.WriteString("\n")
	return b.String()
}

func truncateRunes(s string, n int) string {
	if runes := []rune(s); len(runes) > n {
		return string(runes[:n])
	}
	return s
}
