package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"review-pulse/internal/domain/location"
	"review-pulse/internal/domain/review"
	"review-pulse/internal/pkg/ids"
	"review-pulse/internal/pkg/sanitize"

	"github.com/gocolly/colly/v2"
)

const (
	sourceUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	sourcePageTimeout = 30 * time.Second
	maxFeedPages      = 200
)

// feedPage is one page of the external review feed.
type feedPage struct {
	Total      int         `json:"total"`
	TotalPages int         `json:"totalPages"`
	Page       int         `json:"page"`
	Reviews    []feedEntry `json:"reviews"`
}

type feedEntry struct {
	ReviewID    string  `json:"reviewId"`
	Author      string  `json:"author"`
	Rating      float64 `json:"rating"`
	Text        string  `json:"text"`
	PublishedAt string  `json:"publishedAt"`
}

// FeedSource pulls paginated review JSON from a location's source URL.
type FeedSource struct {
	baseURL string
	logger  *log.Logger
}

func NewFeedSource(baseURL string, logger *log.Logger) *FeedSource {
	return &FeedSource{baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

func (s *FeedSource) Fetch(ctx context.Context, loc location.Location, onProgress func(current, total int, message string)) ([]review.Review, error) {
	feedURL, err := s.resolve(loc.SourceURL)
	if err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.UserAgent(sourceUserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(sourcePageTimeout)

	var (
		page     feedPage
		pageErr  error
		received bool
	)
	collector.OnResponse(func(r *colly.Response) {
		received = true
		page = feedPage{}
		pageErr = json.Unmarshal(r.Body, &page)
	})
	collector.OnError(func(r *colly.Response, err error) {
		received = true
		pageErr = fmt.Errorf("feed request failed (status %d): %w", r.StatusCode, err)
	})

	scrapedAt := time.Now().UTC()
	var out []review.Review
	total := 0

	for pageNum := 1; pageNum <= maxFeedPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		received = false
		pageErr = nil
		if err := collector.Visit(pageURL(feedURL, pageNum)); err != nil {
			return nil, fmt.Errorf("fetch feed page %d: %w", pageNum, err)
		}
		collector.Wait()
		if !received {
			return nil, fmt.Errorf("feed page %d: no response", pageNum)
		}
		if pageErr != nil {
			return nil, fmt.Errorf("feed page %d: %w", pageNum, pageErr)
		}

		if page.Total > 0 {
			total = page.Total
		}
		for _, entry := range page.Reviews {
			rv, ok := s.mapEntry(entry, loc, scrapedAt)
			if !ok {
				continue
			}
			out = append(out, rv)
		}

		if total == 0 {
			total = len(out)
		}
		onProgress(len(out), total, fmt.Sprintf("fetched page %d", pageNum))

		if page.TotalPages > 0 && pageNum >= page.TotalPages {
			break
		}
		if len(page.Reviews) == 0 {
			break
		}
	}

	if s.logger != nil {
		s.logger.Printf("[Source] location=%s fetched=%d", loc.ID, len(out))
	}
	return out, nil
}

// mapEntry turns a feed entry into a review, dropping rows the feed
// sends malformed rather than failing the whole run.
func (s *FeedSource) mapEntry(entry feedEntry, loc location.Location, scrapedAt time.Time) (review.Review, bool) {
	externalID := strings.TrimSpace(entry.ReviewID)
	if externalID == "" {
		return review.Review{}, false
	}
	rating := int(entry.Rating + 0.5)
	if rating < 1 {
		rating = 1
	}
	if rating > 5 {
		rating = 5
	}
	publishedAt := scrapedAt
	if entry.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, entry.PublishedAt); err == nil {
			publishedAt = t.UTC()
		}
	}
	author := sanitize.Text(entry.Author, 200)
	if author == "" {
		author = "Anonymous"
	}
	return review.Review{
		ID:               ids.New(),
		OwnerID:          loc.OwnerID,
		LocationID:       loc.ID,
		ExternalReviewID: externalID,
		Author:           author,
		Rating:           rating,
		Text:             sanitize.Text(entry.Text, sanitize.MaxTextLength),
		PublishedAt:      publishedAt,
		ScrapedAt:        scrapedAt,
	}, true
}

// resolve turns a stored source URL into an absolute feed URL,
// treating relative values as paths under the configured base.
func (s *FeedSource) resolve(sourceURL string) (string, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return "", ErrNoSource
	}
	if strings.HasPrefix(sourceURL, "http://") || strings.HasPrefix(sourceURL, "https://") {
		if _, err := url.Parse(sourceURL); err != nil {
			return "", fmt.Errorf("invalid source url: %w", err)
		}
		return sourceURL, nil
	}
	if s.baseURL == "" {
		return "", fmt.Errorf("relative source url %q with no base configured", sourceURL)
	}
	return s.baseURL + "/" + strings.TrimLeft(sourceURL, "/"), nil
}

func pageURL(feedURL string, pageNum int) string {
	sep := "?"
	if strings.Contains(feedURL, "?") {
		sep = "&"
	}
	return feedURL + sep + "page=" + strconv.Itoa(pageNum)
}
