package models

import (
	"time"
)

// NewsItem is one timestamped news record, already fetched and
// deduplicated by the news collaborator.
type NewsItem struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Timestamp   time.Time `json:"timestamp"`
	ImpactScore float64   `json:"impact_score,omitempty"`
	Relevance   float64   `json:"relevance,omitempty"`
	Sentiment   int       `json:"sentiment,omitempty"` // -1, 0, +1
}
