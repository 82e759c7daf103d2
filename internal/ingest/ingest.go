// Package ingest turns source feed entries into deduplicated NEW raw items.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"orbix/internal/feeds"
	"orbix/internal/logging"
	"orbix/internal/services"
	"orbix/internal/settings"
	"orbix/internal/stage"
	"orbix/internal/store"
)

const (
	maxPerSource = 20
	snippetRunes = 1000
)

// Store is the persistence surface used by ingestion.
type Store interface {
	ListSources(ctx context.Context, enabledOnly bool) ([]store.Source, error)
	InsertRawItem(ctx context.Context, item *store.RawItem) (bool, error)
	MarkSourceFetched(ctx context.Context, id string, at time.Time) error
}

// Resolver picks a feed reader for a source type.
type Resolver interface {
	Resolve(typ store.SourceType) (feeds.Reader, error)
}

// Stage ingests every enabled source.
type Stage struct {
	store   Store
	readers Resolver
	logger  *slog.Logger
	clock   func() time.Time
}

// New builds the ingestion stage.
func New(st Store, readers Resolver, logger *slog.Logger) *Stage {
	return &Stage{
		store:   st,
		readers: readers,
		logger:  logging.NewComponentLogger(logger, stage.NameIngestion),
		clock:   time.Now,
	}
}

// SetClock overrides the time source.
func (s *Stage) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

func (s *Stage) Name() string { return stage.NameIngestion }

func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.store == nil || s.readers == nil {
		return stage.Unhealthy(s.Name(), "store or feed readers not configured")
	}
	return stage.Healthy(s.Name())
}

// Run reads every enabled source. A failing source is logged and left for the
// next run; its last_fetched_at is not updated. Each inserted item counts as
// a success and each duplicate as a skip.
func (s *Stage) Run(ctx context.Context, _ settings.Settings) (stage.Result, error) {
	var result stage.Result
	sources, err := s.store.ListSources(ctx, true)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, stage.NameIngestion, "list sources", "", err)
	}
	logger := logging.WithContext(ctx, s.logger)

	for _, src := range sources {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		srcResult, err := s.ingestSource(ctx, src)
		result.Add(srcResult)
		if err != nil {
			logging.WarnWithContext(logger, "source ingestion failed", "source_failed",
				logging.String("source_id", src.ID),
				logging.String("source_url", src.URL),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the source URL and type"),
				logging.String(logging.FieldImpact, "source retried on the next run"),
			)
			continue
		}
		logger.Debug("source ingested",
			logging.String("source_id", src.ID),
			logging.Int("new_items", srcResult.Succeeded),
			logging.Int("duplicates", srcResult.Skipped),
		)
	}
	return result, nil
}

func (s *Stage) ingestSource(ctx context.Context, src store.Source) (stage.Result, error) {
	var result stage.Result
	reader, err := s.readers.Resolve(src.Type)
	if err != nil {
		result.Fail()
		return result, err
	}
	entries, err := reader.Read(ctx, src)
	if err != nil {
		result.Fail()
		return result, err
	}
	if len(entries) > maxPerSource {
		entries = entries[:maxPerSource]
	}

	now := s.clock().UTC()
	for _, entry := range entries {
		item, ok := NewRawItem(src.ID, entry, now)
		if !ok {
			continue
		}
		inserted, err := s.store.InsertRawItem(ctx, item)
		switch {
		case err != nil:
			result.Fail()
			logging.WarnWithContext(s.logger, "raw item insert failed", "raw_item_insert_failed",
				logging.String("source_id", src.ID),
				logging.String("url", item.URL),
				logging.Error(err),
			)
		case inserted:
			result.Succeed()
		default:
			result.Skip()
		}
	}

	if err := s.store.MarkSourceFetched(ctx, src.ID, now); err != nil {
		return result, services.Wrap(services.ErrTransient, stage.NameIngestion, "mark fetched", src.ID, err)
	}
	return result, nil
}

// NewRawItem converts a feed entry into a NEW raw item. Entries without a url
// or title are rejected.
func NewRawItem(sourceID string, entry feeds.Entry, now time.Time) (*store.RawItem, bool) {
	url := strings.TrimSpace(entry.URL)
	title := strings.TrimSpace(entry.Title)
	if url == "" || title == "" {
		return nil, false
	}
	published := entry.PublishedAt
	if published.IsZero() {
		published = now
	}
	return &store.RawItem{
		SourceID:    sourceID,
		URL:         url,
		Title:       title,
		Snippet:     capRunes(strings.TrimSpace(entry.Snippet), snippetRunes),
		PublishedAt: published.UTC(),
		Hash:        Hash(url, title),
		Status:      store.RawItemNew,
	}, true
}

// Hash is the deduplication key of a raw item: hex sha256 of url followed by
// title.
func Hash(url, title string) string {
	sum := sha256.Sum256([]byte(url + title))
	return hex.EncodeToString(sum[:])
}

func capRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
