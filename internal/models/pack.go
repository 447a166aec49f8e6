package models

import "time"

type PackSource string

const (
	PackSourceResearch PackSource = "research"
	PackSourceLink     PackSource = "link"
	PackSourceNote     PackSource = "note"
	PackSourcePrompt   PackSource = "prompt"
)

// PackItem 每日内容包中的单条
type PackItem struct {
	ID             string     `json:"id"`
	Source         PackSource `json:"source"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary"`
	URL            string     `json:"url,omitempty"`
	Domain         string     `json:"domain,omitempty"`
	ReadingMinutes int        `json:"reading_minutes"`
	WhyItMatters   string     `json:"why_it_matters"`
	Paradigm       string     `json:"paradigm,omitempty"`
	MeritScore     float64    `json:"merit_score,omitempty"`
	Synthetic      bool       `json:"synthetic,omitempty"`
}

type DailyPack struct {
	Date        string     `json:"date"`
	Topic       string     `json:"topic"`
	Items       []PackItem `json:"items"`
	GeneratedAt time.Time  `json:"generated_at"`
}
