package feeds

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"html"
	"net/http"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"orbix/internal/services"
	"orbix/internal/store"
)

// RSSReader reads RSS 2.0 and Atom 1.0 feeds.
type RSSReader struct {
	client *http.Client
	policy *bluemonday.Policy
}

// NewRSSReader builds a feed reader using client.
func NewRSSReader(client *http.Client) *RSSReader {
	return &RSSReader{client: client, policy: bluemonday.StrictPolicy()}
}

// Read fetches and parses the feed at src.URL.
func (r *RSSReader) Read(ctx context.Context, src store.Source) ([]Entry, error) {
	body, err := fetch(ctx, r.client, src.URL)
	if err != nil {
		return nil, err
	}
	entries, err := r.Parse(body)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingestion", "parse feed", src.URL, err)
	}
	return entries, nil
}

// Parse auto-detects RSS or Atom from the root element and returns at most
// MaxEntries entries with markup stripped from their descriptions.
func (r *RSSReader) Parse(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty feed")
	}
	var entries []Entry
	var err error
	switch detectFormat(trimmed) {
	case "rss":
		entries, err = parseRSS(trimmed)
	case "atom":
		entries, err = parseAtom(trimmed)
	default:
		return nil, errors.New("unknown feed format (expected <rss> or <feed>)")
	}
	if err != nil {
		return nil, err
	}
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	for i := range entries {
		entries[i].Snippet = r.plainText(entries[i].Snippet)
	}
	return entries, nil
}

func (r *RSSReader) plainText(value string) string {
	if value == "" {
		return ""
	}
	stripped := html.UnescapeString(r.policy.Sanitize(value))
	return strings.Join(strings.Fields(stripped), " ")
}

func detectFormat(data []byte) string {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch strings.ToLower(se.Name.Local) {
			case "rss", "rdf":
				return "rss"
			case "feed":
				return "atom"
			default:
				return ""
			}
		}
	}
}

type rssRoot struct {
	Channel rssChannel `xml:"channel"`
	Items   []rssItem  `xml:"item"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
	Content     string `xml:"encoded"`
	PubDate     string `xml:"pubDate"`
	Date        string `xml:"date"`
}

func parseRSS(data []byte) ([]Entry, error) {
	var root rssRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	// RSS 1.0 (RDF) places items beside the channel.
	items := root.Channel.Items
	if len(items) == 0 {
		items = root.Items
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		link := strings.TrimSpace(item.Link)
		if link == "" && strings.HasPrefix(strings.TrimSpace(item.GUID), "http") {
			link = strings.TrimSpace(item.GUID)
		}
		snippet := strings.TrimSpace(item.Description)
		if snippet == "" {
			snippet = strings.TrimSpace(item.Content)
		}
		published := strings.TrimSpace(item.PubDate)
		if published == "" {
			published = strings.TrimSpace(item.Date)
		}
		entries = append(entries, Entry{
			Title:       strings.TrimSpace(html.UnescapeString(item.Title)),
			URL:         link,
			Snippet:     snippet,
			PublishedAt: parseDate(published),
		})
	}
	return entries, nil
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

func parseAtom(data []byte) ([]Entry, error) {
	var root atomFeed
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(root.Entries))
	for _, entry := range root.Entries {
		snippet := strings.TrimSpace(entry.Summary)
		if snippet == "" {
			snippet = strings.TrimSpace(entry.Content)
		}
		published := strings.TrimSpace(entry.Published)
		if published == "" {
			published = strings.TrimSpace(entry.Updated)
		}
		entries = append(entries, Entry{
			Title:       strings.TrimSpace(html.UnescapeString(entry.Title)),
			URL:         atomEntryLink(entry.Links),
			Snippet:     snippet,
			PublishedAt: parseDate(published),
		})
	}
	return entries, nil
}

func atomEntryLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "alternate" || l.Rel == "" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}
