package feeds_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orbix/internal/feeds"
	"orbix/internal/services"
	"orbix/internal/store"
)

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Wire</title>
  <item>
    <title>Regulator &amp; banks clash</title>
    <link>https://news.test/a</link>
    <description>&lt;p&gt;Rules &lt;b&gt;changed&lt;/b&gt; overnight&lt;/p&gt;</description>
    <pubDate>Mon, 02 Jun 2025 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>No date here</title>
    <guid>https://news.test/b</guid>
  </item>
</channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom wire</title>
  <entry>
    <title>Chipmaker reverses course</title>
    <link rel="alternate" href="https://atom.test/1"/>
    <summary>Plans scrapped</summary>
    <updated>2025-06-02T08:30:00Z</updated>
  </entry>
</feed>`

func TestRSSReaderParsesRSS(t *testing.T) {
	entries, err := feeds.NewRSSReader(http.DefaultClient).Parse([]byte(rssFixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.Title != "Regulator & banks clash" {
		t.Fatalf("unexpected title %q", first.Title)
	}
	if first.Snippet != "Rules changed overnight" {
		t.Fatalf("expected markup stripped, got %q", first.Snippet)
	}
	want := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, first.PublishedAt)
	}
	if entries[1].URL != "https://news.test/b" {
		t.Fatalf("expected guid fallback link, got %q", entries[1].URL)
	}
	if !entries[1].PublishedAt.IsZero() {
		t.Fatalf("expected zero date, got %v", entries[1].PublishedAt)
	}
}

func TestRSSReaderParsesAtom(t *testing.T) {
	entries, err := feeds.NewRSSReader(http.DefaultClient).Parse([]byte(atomFixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 || entries[0].URL != "https://atom.test/1" || entries[0].Snippet != "Plans scrapped" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestRSSReaderCapsEntries(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<rss><channel>`)
	for i := range 30 {
		fmt.Fprintf(&b, `<item><title>t%d</title><link>https://x.test/%d</link></item>`, i, i)
	}
	b.WriteString(`</channel></rss>`)
	entries, err := feeds.NewRSSReader(http.DefaultClient).Parse([]byte(b.String()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != feeds.MaxEntries {
		t.Fatalf("expected %d entries, got %d", feeds.MaxEntries, len(entries))
	}
}

func TestRSSReaderRejectsUnknownFormat(t *testing.T) {
	if _, err := feeds.NewRSSReader(http.DefaultClient).Parse([]byte(`<html></html>`)); err == nil {
		t.Fatal("expected error for non-feed document")
	}
}

const htmlFixture = `<html><body>
<div class="Post-Card">
  <h2>Court strikes down merger</h2>
  <a href="/news/merger">Read</a>
  <p class="post-summary">The <em>deal</em> is off.</p>
  <time datetime="2025-06-01T12:00:00Z">June 1</time>
</div>
<article class="article">
  <a href="https://other.test/x">Central bank surprise</a>
</article>
<div class="sidebar"><h2>Ignored</h2></div>
<div class="post"></div>
</body></html>`

func TestHTMLReaderExtractsArticles(t *testing.T) {
	entries, err := feeds.NewHTMLReader(http.DefaultClient).Parse([]byte(htmlFixture), "https://site.test/list")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	first := entries[0]
	if first.Title != "Court strikes down merger" || first.URL != "https://site.test/news/merger" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if !strings.Contains(first.Snippet, "deal") || strings.Contains(first.Snippet, "<em>") {
		t.Fatalf("unexpected snippet %q", first.Snippet)
	}
	if first.PublishedAt.IsZero() {
		t.Fatal("expected datetime parsed")
	}
	if entries[1].Title != "Central bank surprise" || entries[1].URL != "https://other.test/x" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
}

func TestRegistryReadsOverHTTP(t *testing.T) {
	var agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer server.Close()

	registry := feeds.NewRegistry(server.Client())
	reader, err := registry.Resolve(store.SourceRSS)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	entries, err := reader.Read(context.Background(), store.Source{URL: server.URL + "/feed", Type: store.SourceRSS})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 2 || agent != feeds.UserAgent {
		t.Fatalf("unexpected read: %d entries, agent %q", len(entries), agent)
	}

	if _, err := reader.Read(context.Background(), store.Source{URL: server.URL + "/missing"}); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error for 404, got %v", err)
	}
	if _, err := registry.Resolve(store.SourceType("PODCAST")); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
