package feeds

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"

	"orbix/internal/services"
	"orbix/internal/store"
)

const htmlSnippetRunes = 500

// HTMLReader scrapes article listings from plain HTML pages.
type HTMLReader struct {
	client    *http.Client
	converter *converter.Converter
}

// NewHTMLReader builds a listing-page reader using client.
func NewHTMLReader(client *http.Client) *HTMLReader {
	return &HTMLReader{
		client: client,
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Read fetches src.URL and extracts article entries.
func (r *HTMLReader) Read(ctx context.Context, src store.Source) ([]Entry, error) {
	body, err := fetch(ctx, r.client, src.URL)
	if err != nil {
		return nil, err
	}
	entries, err := r.Parse(body, src.URL)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingestion", "parse page", src.URL, err)
	}
	return entries, nil
}

// Parse extracts up to MaxEntries entries from an HTML document. Articles are
// article or div elements whose class mentions "article" or "post".
func (r *HTMLReader) Parse(data []byte, pageURL string) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	var entries []Entry
	doc.Find("article, div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return classContains(s, "article", "post")
	}).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(entries) >= MaxEntries {
			return false
		}
		if entry, ok := r.extract(s, base, pageURL); ok {
			entries = append(entries, entry)
		}
		return true
	})
	return entries, nil
}

func (r *HTMLReader) extract(s *goquery.Selection, base *url.URL, pageURL string) (Entry, bool) {
	titleSel := s.Find("h1, h2, h3, a").First()
	if titleSel.Length() == 0 {
		return Entry{}, false
	}
	title := strings.Join(strings.Fields(titleSel.Text()), " ")
	if title == "" {
		return Entry{}, false
	}

	link := pageURL
	if href, ok := s.Find("a[href]").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		link = resolve(base, strings.TrimSpace(href))
	}

	var snippet string
	snippetSel := s.Find("p, div").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return classContains(el, "summary", "excerpt")
	}).First()
	if snippetSel.Length() > 0 {
		snippet = truncateRunes(r.toText(snippetSel, pageURL), htmlSnippetRunes)
	}

	entry := Entry{Title: title, URL: link, Snippet: snippet}
	if dt, ok := s.Find("time[datetime]").First().Attr("datetime"); ok {
		entry.PublishedAt = parseDate(strings.TrimSpace(dt))
	}
	return entry, true
}

func (r *HTMLReader) toText(s *goquery.Selection, pageURL string) string {
	fallback := strings.Join(strings.Fields(s.Text()), " ")
	inner, err := s.Html()
	if err != nil || strings.TrimSpace(inner) == "" {
		return fallback
	}
	md, err := r.converter.ConvertString(inner, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(md) == "" {
		return fallback
	}
	return strings.Join(strings.Fields(md), " ")
}

func classContains(s *goquery.Selection, needles ...string) bool {
	class, ok := s.Attr("class")
	if !ok {
		return false
	}
	class = strings.ToLower(class)
	for _, n := range needles {
		if strings.Contains(class, n) {
			return true
		}
	}
	return false
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
