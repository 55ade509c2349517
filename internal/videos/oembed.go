package videos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const oembedEndpoint = "https://www.youtube.com/oembed"

// OEmbedMeta is the public metadata returned for an existing video.
type OEmbedMeta struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Verifier checks that a video URL points at a real, public video.
type Verifier interface {
	// Verify returns the video's public metadata, or an error if the video
	// does not exist or is not public.
	Verify(ctx context.Context, videoURL string) (*OEmbedMeta, error)
}

// OEmbedVerifier verifies videos via the public oEmbed endpoint, which needs
// no API key and costs no quota.
type OEmbedVerifier struct {
	client *http.Client
}

// NewOEmbedVerifier builds a verifier. A nil client gets a short-timeout
// default.
func NewOEmbedVerifier(client *http.Client) *OEmbedVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OEmbedVerifier{client: client}
}

func (v *OEmbedVerifier) Verify(ctx context.Context, videoURL string) (*OEmbedMeta, error) {
	endpoint := oembedEndpoint + "?format=json&url=" + url.QueryEscape(videoURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oembed lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oembed lookup for %s returned status %d", videoURL, resp.StatusCode)
	}

	var meta OEmbedMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decoding oembed response: %w", err)
	}
	return &meta, nil
}
