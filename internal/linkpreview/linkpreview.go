// Package linkpreview fetches OpenGraph-style metadata for shared URLs.
package linkpreview

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Preview is the metadata tuple returned for a shared link. A fetch that
// fails still produces a usable preview built from the URL itself.
type Preview struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	SiteName    string `json:"site_name"`
}

type Fetcher struct {
	client  *http.Client
	cache   Cache
	timeout time.Duration
}

// Cache stores previews keyed by URL. A nil cache disables caching.
type Cache interface {
	Get(ctx context.Context, url string) (Preview, bool)
	Set(ctx context.Context, url string, p Preview)
}

func NewFetcher(timeout time.Duration, cache Cache) *Fetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		cache:   cache,
		timeout: timeout,
	}
}

// Fetch returns preview metadata for the URL. Network or parse failures
// degrade to a preview carrying just the URL and host.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Preview {
	if f.cache != nil {
		if p, ok := f.cache.Get(ctx, rawURL); ok {
			return p
		}
	}

	preview := f.fetch(ctx, rawURL)

	if f.cache != nil {
		f.cache.Set(ctx, rawURL, preview)
	}
	return preview
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) Preview {
	fallback := degraded(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fallback
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; CaseloadBot/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fallback
	}

	meta := parseMetadata(resp.Body)

	preview := Preview{
		URL:         rawURL,
		Title:       firstNonEmpty(meta["og:title"], meta["twitter:title"], meta["_title"], rawURL),
		Description: firstNonEmpty(meta["og:description"], meta["twitter:description"], meta["description"]),
		Thumbnail:   firstNonEmpty(meta["og:image"], meta["twitter:image"]),
		SiteName:    firstNonEmpty(meta["og:site_name"], fallback.SiteName),
	}
	preview.Thumbnail = absolutize(rawURL, preview.Thumbnail)
	return preview
}

func degraded(rawURL string) Preview {
	p := Preview{URL: rawURL, Title: rawURL}
	if u, err := url.Parse(rawURL); err == nil {
		p.SiteName = u.Host
	}
	return p
}

// parseMetadata walks the token stream collecting meta tags and the first
// <title>. Parsing stops at the end of <head>; metadata never lives past it.
func parseMetadata(body io.Reader) map[string]string {
	meta := map[string]string{}
	tokenizer := html.NewTokenizer(body)

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return meta
		case html.EndTagToken:
			token := tokenizer.Token()
			if token.Data == "head" {
				return meta
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "meta":
				var key, content string
				for _, attr := range token.Attr {
					switch attr.Key {
					case "property", "name":
						key = strings.ToLower(attr.Val)
					case "content":
						content = attr.Val
					}
				}
				if key != "" && content != "" {
					if _, exists := meta[key]; !exists {
						meta[key] = content
					}
				}
			case "title":
				if tokenizer.Next() == html.TextToken {
					if _, exists := meta["_title"]; !exists {
						meta["_title"] = strings.TrimSpace(tokenizer.Token().Data)
					}
				}
			}
		}
	}
}

func absolutize(pageURL, thumbnail string) string {
	if thumbnail == "" || strings.HasPrefix(thumbnail, "http://") || strings.HasPrefix(thumbnail, "https://") {
		return thumbnail
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return thumbnail
	}
	ref, err := url.Parse(thumbnail)
	if err != nil {
		return thumbnail
	}
	return base.ResolveReference(ref).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
