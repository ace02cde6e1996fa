// Package playlist enumerates the items of a YouTube playlist. It is a
// read-only lookup: it scrapes the playlist page's embedded data blob
// and returns item URLs and titles, nothing more.
package playlist

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/psannetwork/youtube/internal/domain"
)

// Video is one playlist entry.
type Video struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Fetcher retrieves playlist pages over HTTP.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher builds a fetcher with sane timeouts and a desktop UA; the
// mobile page variant lacks the data blob this parser reads.
func NewFetcher() *Fetcher {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36").
		SetHeader("Accept-Language", "en")
	return &Fetcher{client: client}
}

// Fetch returns the items of the playlist in page order.
func (f *Fetcher) Fetch(ctx context.Context, playlistID string) ([]Video, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("list", playlistID).
		Get("https://www.youtube.com/playlist")
	if err != nil {
		return nil, fmt.Errorf("fetch playlist %s: %w", playlistID, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch playlist %s: status %d", playlistID, resp.StatusCode())
	}

	videos := extractVideos(resp.Body())
	if len(videos) == 0 {
		return nil, &domain.ValidationError{Reason: "playlist not found or empty: " + playlistID}
	}
	return videos, nil
}

var (
	rendererRe = regexp.MustCompile(`"playlistVideoRenderer":`)
	videoIDRe  = regexp.MustCompile(`"videoId":"([A-Za-z0-9_-]{11})"`)
	titleRe    = regexp.MustCompile(`"title":\{"runs":\[\{"text":"((?:[^"\\]|\\.)*)"`)
)

// extractVideos pulls {videoId, title} pairs out of the ytInitialData
// blob embedded in the playlist page. Best effort: entries whose title
// cannot be located still appear with an empty title.
func extractVideos(page []byte) []Video {
	splits := rendererRe.FindAllIndex(page, -1)
	seen := make(map[string]struct{})
	videos := make([]Video, 0, len(splits))

	for i, loc := range splits {
		end := len(page)
		if i+1 < len(splits) {
			end = splits[i+1][0]
		}
		chunk := page[loc[1]:end]

		idMatch := videoIDRe.FindSubmatch(chunk)
		if idMatch == nil {
			continue
		}
		id := string(idMatch[1])
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		var title string
		if tm := titleRe.FindSubmatch(chunk); tm != nil {
			// Titles arrive JSON-escaped; decode through the JSON parser.
			if err := json.Unmarshal([]byte(`"`+string(tm[1])+`"`), &title); err != nil {
				title = string(tm[1])
			}
		}

		videos = append(videos, Video{
			Title: title,
			URL:   "https://www.youtube.com/watch?v=" + id,
		})
	}
	return videos
}
