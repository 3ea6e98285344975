// Package news scores already-fetched headlines for market impact,
// symbol relevance, and crude sentiment. Fetching and parsing feeds is
// the ingestion collaborator's job; this package only ranks finite,
// timestamped item lists.
package news

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"capwatch/internal/models"
)

var majorEventKeywords = map[string]float64{
	"earnings": 3.0, "merger": 3.0, "acquisition": 3.0, "fda approval": 3.0,
	"upgrade": 2.0, "downgrade": 2.0, "guidance": 2.0, "breakthrough": 2.0,
	"buyout": 1.0, "takeover": 1.0, "clinical trial": 1.0, "patent": 1.0,
	"lawsuit": 1.0, "settlement": 1.0, "bankruptcy": 1.0, "restructuring": 1.0,
	"outlook": 1.0, "forecast": 1.0, "split": 1.0, "dividend": 1.0,
	"spinoff": 1.0, "partnership": 1.0, "contract": 1.0, "recall": 1.0,
	"investigation": 1.0, "sec": 1.0, "regulatory": 1.0,
	"surge": 1.0, "plunge": 1.0, "spike": 1.0, "crash": 1.0, "rally": 1.0,
}

var positiveWords = []string{"surge", "rally", "gain", "rise", "up", "bull", "positive", "strong", "growth", "beat"}

var negativeWords = []string{"plunge", "crash", "fall", "drop", "down", "bear", "negative", "weak", "loss", "miss"}

var (
	percentRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	dollarRe     = regexp.MustCompile(`\$\d+(?:\.\d+)?\s*(?:billion|million|b|m)\b`)
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	maxImpact    = 10.0
	dedupJaccard = 0.7
)

// ImpactScore estimates market impact of a headline in [0, 10] from
// event keywords, percentage mentions, and deal-sized dollar amounts.
func ImpactScore(text string) float64 {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)

	var score float64
	for keyword, points := range majorEventKeywords {
		if strings.Contains(lower, keyword) {
			score += points
		}
	}

	var maxPct float64
	for _, m := range percentRe.FindAllStringSubmatch(lower, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > maxPct {
			maxPct = v
		}
	}
	if maxPct > 20 {
		score += 2.0
	} else if maxPct > 10 {
		score += 1.0
	}

	if dollarRe.MatchString(lower) {
		score += 1.5
	}

	if score > maxImpact {
		score = maxImpact
	}
	return score
}

// RelevanceScore ranks an item's relevance to a symbol: direct and
// cashtag mentions in the title outrank summary mentions, impact
// boosts relevance, and fresher items rank higher.
func RelevanceScore(item models.NewsItem, symbol string, now time.Time) float64 {
	title := strings.ToLower(item.Title)
	summary := strings.ToLower(item.Summary)
	sym := strings.ToLower(symbol)

	var score float64
	if strings.Contains(title, sym) {
		score += 5.0
	}
	if strings.Contains(title, "$"+sym) {
		score += 6.0
	}
	if strings.Contains(summary, sym) {
		score += 3.0
	}
	if strings.Contains(summary, "$"+sym) {
		score += 4.0
	}

	score += item.ImpactScore * 0.5

	age := now.Sub(item.Timestamp)
	if age < time.Hour {
		score += 2.0
	} else if age < 6*time.Hour {
		score += 1.0
	}
	return score
}

// Sentiment classifies a single item as -1, 0, or +1 by counting
// positive and negative words across title and summary.
func Sentiment(item models.NewsItem) int {
	text := strings.ToLower(item.Title + " " + item.Summary)
	positive := 0
	for _, w := range positiveWords {
		if strings.Contains(text, w) {
			positive++
		}
	}
	negative := 0
	for _, w := range negativeWords {
		if strings.Contains(text, w) {
			negative++
		}
	}
	switch {
	case positive > negative:
		return 1
	case negative > positive:
		return -1
	default:
		return 0
	}
}

// SentimentSummary aggregates per-item sentiment over a batch.
type SentimentSummary struct {
	Overall       float64
	PositiveCount int
	NegativeCount int
	NeutralCount  int
}

// AnalyzeSentiment stamps each item's Sentiment field in place and
// returns the batch aggregate (mean of the per-item classifications).
func AnalyzeSentiment(items []models.NewsItem) SentimentSummary {
	var summary SentimentSummary
	if len(items) == 0 {
		return summary
	}
	total := 0
	for i := range items {
		s := Sentiment(items[i])
		items[i].Sentiment = s
		total += s
		switch {
		case s > 0:
			summary.PositiveCount++
		case s < 0:
			summary.NegativeCount++
		default:
			summary.NeutralCount++
		}
	}
	summary.Overall = float64(total) / float64(len(items))
	return summary
}

// Deduplicate drops items whose normalized title word set overlaps an
// earlier item's by more than 70% (Jaccard similarity). Order is
// preserved; the first occurrence wins.
func Deduplicate(items []models.NewsItem) []models.NewsItem {
	var unique []models.NewsItem
	var seen []map[string]struct{}

	for _, item := range items {
		words := titleWords(item.Title)
		duplicate := false
		for _, prior := range seen {
			if jaccard(words, prior) > dedupJaccard {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		unique = append(unique, item)
		seen = append(seen, words)
	}
	return unique
}

func titleWords(title string) map[string]struct{} {
	normalized := nonWordRe.ReplaceAllString(strings.ToLower(title), "")
	words := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		words[w] = struct{}{}
	}
	return words
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// RankForSymbol scores, deduplicates, and sorts a batch for one
// symbol: highest relevance first, ties broken by recency.
func RankForSymbol(items []models.NewsItem, symbol string, now time.Time) []models.NewsItem {
	scored := make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		if item.ImpactScore == 0 {
			item.ImpactScore = ImpactScore(item.Title)
		}
		item.Relevance = RelevanceScore(item, symbol, now)
		if item.Relevance > 0 {
			scored = append(scored, item)
		}
	}
	scored = Deduplicate(scored)
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Relevance != scored[j].Relevance {
			return scored[i].Relevance > scored[j].Relevance
		}
		return scored[i].Timestamp.After(scored[j].Timestamp)
	})
	return scored
}
