package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"orbix/internal/services"
	"orbix/internal/store"
)

// UserAgent identifies the crawler to source sites.
const UserAgent = "Mozilla/5.0 (compatible; OrbixBot/1.0)"

// MaxEntries bounds how many entries a reader returns per source.
const MaxEntries = 20

const maxBodyBytes = 8 << 20

// Entry is one item read from a source. PublishedAt is zero when the source
// did not supply a parsable date.
type Entry struct {
	Title       string
	URL         string
	Snippet     string
	PublishedAt time.Time
}

// Reader produces the current entries of a source. Each call re-fetches.
type Reader interface {
	Read(ctx context.Context, src store.Source) ([]Entry, error)
}

// Registry maps source types to readers.
type Registry struct {
	readers map[store.SourceType]Reader
}

// NewRegistry builds a registry with the RSS and HTML readers sharing client.
func NewRegistry(client *http.Client) *Registry {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	r := &Registry{readers: map[store.SourceType]Reader{}}
	r.Register(store.SourceRSS, NewRSSReader(client))
	r.Register(store.SourceHTML, NewHTMLReader(client))
	return r
}

// Register adds or replaces the reader for typ.
func (r *Registry) Register(typ store.SourceType, reader Reader) {
	if r.readers == nil {
		r.readers = map[store.SourceType]Reader{}
	}
	r.readers[typ] = reader
}

// Resolve returns the reader for typ.
func (r *Registry) Resolve(typ store.SourceType) (Reader, error) {
	if reader, ok := r.readers[typ]; ok {
		return reader, nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "ingestion", "resolve reader", fmt.Sprintf("no reader for source type %q", typ), nil)
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingestion", "build request", url, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingestion", "fetch", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "ingestion", "fetch", fmt.Sprintf("%s returned %s", url, resp.Status), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingestion", "read body", url, err)
	}
	return body, nil
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339Nano,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(value string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
