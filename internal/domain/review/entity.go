package review

import "time"

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func ValidSentiment(s string) bool {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Review is one raw ingested review. Ingestion fields are immutable;
// sentiment never lives here. Uniqueness is per owner, not global: two
// owners tracking the same place each keep their own copy of the same
// externally-sourced review.
type Review struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"ownerId"`
	LocationID       string    `json:"locationId"`
	ExternalReviewID string    `json:"reviewId"`
	Author           string    `json:"author"`
	Rating           int       `json:"rating"`
	Text             string    `json:"text"`
	PublishedAt      time.Time `json:"publishedAt"`
	ScrapedAt        time.Time `json:"scrapedAt"`
}

// Annotation is the derived sentiment record for one review. It is
// created by analysis and deleted wholesale on reanalysis, never
// partially patched.
type Annotation struct {
	ID          string    `json:"id"`
	ReviewID    string    `json:"reviewId"`
	OwnerID     string    `json:"ownerId"`
	LocationID  string    `json:"locationId"`
	Sentiment   Sentiment `json:"sentiment"`
	Score       float64   `json:"sentimentScore"`
	Confidence  float64   `json:"confidence"`
	Keywords    []string  `json:"sentimentKeywords"`
	Topics      []string  `json:"contextualTopics"`
	Summary     string    `json:"summary"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Annotated joins a raw review with its annotation for listing. The
// annotation pointer is nil until the review has been analyzed, which
// makes "sentiment filter requested but nothing analyzed" a type-level
// empty result rather than a silent fallback to the raw source.
type Annotated struct {
	Review
	Annotation *Annotation `json:"annotation,omitempty"`
}
