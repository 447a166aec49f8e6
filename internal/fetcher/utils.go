package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

func fetchJSON[T any](ctx context.Context, url string) (T, error) {
	var result T
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return result, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, err
	}
	return result, nil
}

// feedEntry RSS 条目中我们关心的字段
type feedEntry struct {
	Title       string
	URL         string
	Description string
	Author      string
	PublishedAt time.Time
}

func fetchRSS(ctx context.Context, url string) ([]feedEntry, error) {
	fp := gofeed.NewParser()
	fp.Client = httpClient
	feed, err := fp.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS %s: %w", url, err)
	}

	entries := make([]feedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		pubTime := time.Now().UTC()
		if item.PublishedParsed != nil {
			pubTime = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pubTime = *item.UpdatedParsed
		}

		authors := make([]string, 0, len(item.Authors))
		for _, a := range item.Authors {
			if a != nil && a.Name != "" {
				authors = append(authors, a.Name)
			}
		}

		entries = append(entries, feedEntry{
			Title:       strings.TrimSpace(item.Title),
			URL:         strings.TrimSpace(item.Link),
			Description: cleanAbstract(item.Description),
			Author:      strings.Join(authors, ", "),
			PublishedAt: pubTime,
		})
	}
	return entries, nil
}

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	arxivPreamble = regexp.MustCompile(`(?s)^arXiv:\S+\s+Announce Type:\s*\S+\s*Abstract:\s*`)
)

func stripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// cleanAbstract 去掉 arXiv RSS 描述前面的 "arXiv:xxxx Announce Type: new Abstract:" 前缀
func cleanAbstract(s string) string {
	s = stripHTML(s)
	return arxivPreamble.ReplaceAllString(s, "")
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
