package models

import "time"

type ItemType string

const (
	ItemTypeNote  ItemType = "note"
	ItemTypeLink  ItemType = "link"
	ItemTypePaper ItemType = "paper"
)

// 来源标签
const (
	SourceNotes      = "notes"
	SourceHackerNews = "hackernews"
	SourceArxiv      = "arxiv"
)

// UnifiedItem 各来源内容归一化后的统一结构，每次排序时现算，不落库
type UnifiedItem struct {
	ID          string    `json:"id"`
	Type        ItemType  `json:"type"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url,omitempty"`
	Popularity  float64   `json:"popularity"`
	PublishedAt time.Time `json:"published_at"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	SourceLabel string    `json:"source_label"`

	Score     float64 `json:"score"`
	Relevance float64 `json:"relevance"`
}
