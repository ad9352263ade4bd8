// Package openlibrary looks books up in the public Open Library API.
package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Mishari713/BMS/config"
	"github.com/Mishari713/BMS/metrics"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when a search yields no documents.
var ErrNotFound = errors.New("no book found in open library")

// BookInfo is the summary returned to API clients.
type BookInfo struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

type searchResponse struct {
	Docs []struct {
		Key        string   `json:"key"`
		AuthorName []string `json:"author_name"`
	} `json:"docs"`
}

type workResponse struct {
	Title       string          `json:"title"`
	Description json.RawMessage `json:"description"`
}

// Client is safe for concurrent use. Lookups are cached by normalized name
// and concurrent lookups of the same name share one upstream round trip.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	cache      *lru.LRU[string, BookInfo]
	group      singleflight.Group
	metrics    *metrics.Metrics
}

// New builds a client. m may be nil.
func New(cfg config.OpenLibraryConfig, m *metrics.Metrics) *Client {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		cache:      lru.NewLRU[string, BookInfo](size, nil, cfg.CacheTTL),
		metrics:    m,
	}
}

// FindByName returns the first match for name.
func (c *Client) FindByName(ctx context.Context, name string) (BookInfo, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if info, ok := c.cache.Get(key); ok {
		c.metrics.CacheResult(true)
		return info, nil
	}
	c.metrics.CacheResult(false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		info, err := c.lookup(ctx, name)
		if err != nil {
			return BookInfo{}, err
		}
		c.cache.Add(key, info)
		return info, nil
	})
	if err != nil {
		return BookInfo{}, err
	}
	return v.(BookInfo), nil
}

func (c *Client) lookup(ctx context.Context, name string) (BookInfo, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var search searchResponse
	if err := c.getJSON(ctx, "search", "/search.json?q="+url.QueryEscape(name), &search); err != nil {
		return BookInfo{}, err
	}
	if len(search.Docs) == 0 || search.Docs[0].Key == "" {
		return BookInfo{}, ErrNotFound
	}
	first := search.Docs[0]
	workID := strings.TrimPrefix(first.Key, "/works/")

	var work workResponse
	if err := c.getJSON(ctx, "work", "/works/"+url.PathEscape(workID)+".json", &work); err != nil {
		return BookInfo{}, err
	}

	return BookInfo{
		Title:       work.Title,
		Author:      strings.Join(first.AuthorName, ", "),
		Description: parseDescription(work.Description),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveOpenLibrary(endpoint, 0, time.Since(start))
		return fmt.Errorf("open library %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveOpenLibrary(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open library %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode open library %s: %w", endpoint, err)
	}
	return nil
}

// parseDescription accepts both {"type":..., "value": "..."} and a plain
// string.
func parseDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var description string
	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &typed); err == nil {
		description = typed.Value
	} else if err := json.Unmarshal(raw, &description); err != nil {
		return ""
	}
	description = strings.ReplaceAll(description, "\r\n", " ")
	return strings.ReplaceAll(description, "\n", " ")
}
