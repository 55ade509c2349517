package videos

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// searchResultsPerQuery is how many results each search query requests.
const searchResultsPerQuery = 10

// Candidate is one video considered for a session, carrying the metadata the
// re-rank step needs.
type Candidate struct {
	ID              string
	Title           string
	Channel         string
	ThumbnailURL    string
	Description     string
	ViewCount       uint64
	DurationMinutes int
}

// URL returns the canonical watch URL for the candidate.
func (c Candidate) URL() string {
	return "https://www.youtube.com/watch?v=" + c.ID
}

// SearchClient is the primary video search provider. Implementations return
// ErrQuotaExhausted (possibly wrapped) when the provider's quota is spent.
type SearchClient interface {
	// Search returns the video IDs matching the query, most relevant first.
	Search(ctx context.Context, query string) ([]string, error)
	// Details fetches metadata for the given video IDs. IDs the provider no
	// longer knows are silently absent from the result.
	Details(ctx context.Context, ids []string) ([]Candidate, error)
}

// YouTubeClient implements SearchClient over the YouTube Data API v3.
type YouTubeClient struct {
	svc *youtube.Service
}

// NewYouTubeClient builds a Data API client. An empty key returns
// ErrQuotaExhausted so the caller trips straight to the fallback tier.
func NewYouTubeClient(ctx context.Context, apiKey string) (*YouTubeClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube api key not configured: %w", ErrQuotaExhausted)
	}
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating youtube service: %w", err)
	}
	return &YouTubeClient{svc: svc}, nil
}

func (c *YouTubeClient) Search(ctx context.Context, query string) ([]string, error) {
	resp, err := c.svc.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		VideoEmbeddable("true").
		MaxResults(searchResultsPerQuery).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapQuotaError(err)
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	return ids, nil
}

func (c *YouTubeClient) Details(ctx context.Context, ids []string) ([]Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := c.svc.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapQuotaError(err)
	}

	candidates := make([]Candidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		cand := Candidate{ID: item.Id}
		if item.Snippet != nil {
			cand.Title = item.Snippet.Title
			cand.Channel = item.Snippet.ChannelTitle
			cand.Description = item.Snippet.Description
			if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.Medium != nil {
				cand.ThumbnailURL = item.Snippet.Thumbnails.Medium.Url
			}
		}
		if item.Statistics != nil {
			cand.ViewCount = item.Statistics.ViewCount
		}
		if item.ContentDetails != nil {
			if minutes, err := ParseISODuration(item.ContentDetails.Duration); err == nil {
				cand.DurationMinutes = minutes
			}
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// wrapQuotaError maps a Data API 403 quota response onto ErrQuotaExhausted so
// the finder can trip the breaker; other errors pass through.
func wrapQuotaError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 403 {
		for _, item := range apiErr.Errors {
			if item.Reason == "quotaExceeded" || item.Reason == "dailyLimitExceeded" {
				return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
			}
		}
	}
	return err
}
