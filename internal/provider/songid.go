package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// FingerprintClient matches a clip's melody against the primary fingerprint
// index (a Shazam-style service behind HTTP).
type FingerprintClient struct {
	url    string
	client *http.Client
}

func NewFingerprintClient(url string) *FingerprintClient {
	return &FingerprintClient{url: url, client: newHTTPClient(30 * time.Second)}
}

type fingerprintResponse struct {
	Track *struct {
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
	} `json:"track"`
}

func (c *FingerprintClient) Match(ctx context.Context, wavPath string) (*SongCandidate, error) {
	body, contentType, err := fileForm(wavPath, "sample")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/recognize", body)
	if err != nil {
		return nil, fmt.Errorf("fingerprint request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Provider: "fingerprint", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, &UnavailableError{
			Provider: "fingerprint",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(b)),
		}
	}

	var result fingerprintResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("fingerprint decode: %w", err)
	}
	if result.Track == nil {
		return nil, ErrNoResult
	}
	return &SongCandidate{
		Title:  result.Track.Title,
		Artist: result.Track.Subtitle,
		Source: SourceMelodyMatch,
	}, nil
}

// VideoSearchClient queries the video index used by the voice-search song
// strategy.
type VideoSearchClient struct {
	url    string
	client *http.Client
}

func NewVideoSearchClient(url string) *VideoSearchClient {
	return &VideoSearchClient{url: url, client: newHTTPClient(20 * time.Second)}
}

type videoSearchResponse struct {
	Entries []struct {
		URL       string `json:"url"`
		Title     string `json:"title"`
		ViewCount int64  `json:"view_count"`
	} `json:"entries"`
}

func (c *VideoSearchClient) Search(ctx context.Context, query string, limit int) ([]VideoHit, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, "GET", c.url+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("video search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Provider: "video-search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, &UnavailableError{
			Provider: "video-search",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(b)),
		}
	}

	var result videoSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("video search decode: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, ErrNoResult
	}

	hits := make([]VideoHit, 0, len(result.Entries))
	for _, e := range result.Entries {
		hits = append(hits, VideoHit{URL: e.URL, Title: e.Title, Views: e.ViewCount})
	}
	return hits, nil
}
