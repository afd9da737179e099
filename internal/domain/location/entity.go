package location

import "time"

type ScrapeStatus string

const (
	StatusIdle      ScrapeStatus = "idle"
	StatusPending   ScrapeStatus = "pending"
	StatusScraping  ScrapeStatus = "scraping"
	StatusCompleted ScrapeStatus = "completed"
	StatusFailed    ScrapeStatus = "failed"
)

func (s ScrapeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type ScrapeFrequency string

const (
	FrequencyDaily  ScrapeFrequency = "daily"
	FrequencyWeekly ScrapeFrequency = "weekly"
	FrequencyManual ScrapeFrequency = "manual"
)

type ScrapeConfig struct {
	AutoScrape    bool            `json:"autoScrape"`
	Frequency     ScrapeFrequency `json:"scrapeFrequency"`
	LastScraped   *time.Time      `json:"lastScraped,omitempty"`
	NextScheduled *time.Time      `json:"nextScheduledScrape,omitempty"`
}

// OverallSentiment is the cached rollup for a location. It is always
// recomputed from annotations in full, never patched in place.
type OverallSentiment struct {
	PositivePct    float64    `json:"positivePct"`
	NeutralPct     float64    `json:"neutralPct"`
	NegativePct    float64    `json:"negativePct"`
	AverageRating  float64    `json:"averageRating"`
	TotalReviews   int        `json:"totalReviews"`
	LastCalculated *time.Time `json:"lastCalculated,omitempty"`
}

type Location struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Name    string `json:"name"`
	PlaceID string `json:"placeId"`

	// SourceURL points at the external review feed for this place.
	// A location without one cannot be scraped.
	SourceURL string `json:"sourceUrl"`

	ScrapeStatus    ScrapeStatus `json:"scrapeStatus"`
	LastScrapeError string       `json:"lastScrapeError,omitempty"`
	ScrapeConfig    ScrapeConfig `json:"scrapeConfig"`

	ScrapedReviewCount  int `json:"scrapedReviewCount"`
	AnalyzedReviewCount int `json:"analyzedReviewCount"`

	OverallSentiment OverallSentiment `json:"overallSentiment"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NeedsScrape reports whether ingestion is required: never scraped
// successfully, or the last run failed.
func (l Location) NeedsScrape() bool {
	return l.ScrapeConfig.LastScraped == nil || l.ScrapeStatus == StatusFailed
}
