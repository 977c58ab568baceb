package common

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

const serpAPIURL = "https://serpapi.com/search.json"

// SerpAPIClient fetches candidate image URLs from Google Images via SerpAPI.
type SerpAPIClient struct {
	log    *Logger
	apiKey string
	client *http.Client
}

func NewSerpAPIClient(log *Logger, apiKey string) *SerpAPIClient {
	return &SerpAPIClient{
		log:    log.With("service", "SerpAPI"),
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Search returns up to count image URLs for the query. A failed call returns
// an error; the enrichment stage treats that as "no images for this query".
func (s *SerpAPIClient) Search(ctx context.Context, query string, count int) ([]string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("tbm", "isch")
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serpAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("serpapi error: %d - %s", resp.StatusCode, string(body))
	}

	var result struct {
		ImagesResults []struct {
			Original string `json:"original"`
		} `json:"images_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("serpapi decode: %w", err)
	}

	var urls []string
	for _, img := range result.ImagesResults {
		if img.Original == "" {
			continue
		}
		urls = append(urls, img.Original)
		if len(urls) >= count {
			break
		}
	}
	s.log.Debug("fetched image urls", "query", query, "count", len(urls))
	return urls, nil
}

// ImageDownloader retrieves a single image by URL.
type ImageDownloader struct {
	log    *Logger
	client *http.Client
}

func NewImageDownloader(log *Logger) *ImageDownloader {
	return &ImageDownloader{
		log:    log.With("service", "ImageDownloader"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (d *ImageDownloader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
