package publish

import (
	"context"
	"io"

	"orbix/internal/services/rumble"
	"orbix/internal/services/youtube"
	"orbix/internal/store"
)

// Upload is one video handed to a platform.
type Upload struct {
	Metadata
	Filename string
	Media    io.ReaderAt
	Size     int64
}

// Publisher uploads to one platform and returns the platform video id.
type Publisher interface {
	Platform() store.Platform
	Configured() bool
	Publish(ctx context.Context, upload Upload) (string, error)
	WatchURL(videoID string) string
}

// YouTube adapts the YouTube client.
func YouTube(client *youtube.Client) Publisher {
	return youtubePublisher{client: client}
}

type youtubePublisher struct {
	client *youtube.Client
}

func (youtubePublisher) Platform() store.Platform { return store.PlatformYouTube }

func (p youtubePublisher) Configured() bool { return p.client.Configured() }

func (p youtubePublisher) Publish(ctx context.Context, u Upload) (string, error) {
	return p.client.Upload(ctx, youtube.Video{
		Title:       u.Title,
		Description: u.Description,
		Tags:        u.Tags,
		CategoryID:  u.CategoryID,
		Privacy:     u.Visibility,
		Media:       u.Media,
		Size:        u.Size,
	})
}

func (youtubePublisher) WatchURL(videoID string) string { return youtube.WatchURL(videoID) }

// Rumble adapts the Rumble client.
func Rumble(client *rumble.Client) Publisher {
	return rumblePublisher{client: client}
}

type rumblePublisher struct {
	client *rumble.Client
}

func (rumblePublisher) Platform() store.Platform { return store.PlatformRumble }

func (p rumblePublisher) Configured() bool { return p.client.Configured() }

func (p rumblePublisher) Publish(ctx context.Context, u Upload) (string, error) {
	return p.client.Upload(ctx, rumble.Video{
		Title:       u.Title,
		Description: u.Description,
		Visibility:  u.Visibility,
		Filename:    u.Filename,
		Media:       u.Media,
		Size:        u.Size,
	})
}

func (rumblePublisher) WatchURL(videoID string) string { return videoID }
