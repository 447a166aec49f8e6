package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Note 用户自己写的笔记
type Note struct {
	ID        uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID                   `json:"user_id" gorm:"type:uuid;index"`
	Content   string                      `json:"content"`
	Category  string                      `json:"category"`
	Tags      datatypes.JSONSlice[string] `json:"tags"`
	CreatedAt time.Time                   `json:"created_at" gorm:"index"`
	UpdatedAt time.Time                   `json:"updated_at"`
	DeletedAt gorm.DeletedAt              `json:"-" gorm:"index"`
}

// Story HackerNews 条目
type Story struct {
	gorm.Model
	HNID         int       `json:"hn_id" gorm:"uniqueIndex"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Text         string    `json:"text"`
	Author       string    `json:"author"`
	Score        int       `json:"score"`
	CommentCount int       `json:"comment_count"`
	PublishedAt  time.Time `json:"published_at" gorm:"index"`
}

// Paper arXiv 论文，分类标志在同步时计算
type Paper struct {
	gorm.Model
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract"`
	URL         string    `json:"url" gorm:"uniqueIndex"`
	Authors     string    `json:"authors"`
	PublishedAt time.Time `json:"published_at" gorm:"index"`

	IsPsychology        bool `json:"is_psychology"`
	IsBehavioralScience bool `json:"is_behavioral_science"`
	IsHealthScience     bool `json:"is_health_science"`
	IsNeuroscience      bool `json:"is_neuroscience"`
	IsCognitiveScience  bool `json:"is_cognitive_science"`
	IsAIML              bool `json:"is_ai_ml"`
}

// Flags 以规则表中的标志名返回分类标志
func (p Paper) Flags() map[string]bool {
	return map[string]bool{
		"psychology":         p.IsPsychology,
		"behavioral_science": p.IsBehavioralScience,
		"health_science":     p.IsHealthScience,
		"neuroscience":       p.IsNeuroscience,
		"cognitive_science":  p.IsCognitiveScience,
		"ai_ml":              p.IsAIML,
	}
}

// SetFlags 按标志名写回
func (p *Paper) SetFlags(flags map[string]bool) {
	p.IsPsychology = flags["psychology"]
	p.IsBehavioralScience = flags["behavioral_science"]
	p.IsHealthScience = flags["health_science"]
	p.IsNeuroscience = flags["neuroscience"]
	p.IsCognitiveScience = flags["cognitive_science"]
	p.IsAIML = flags["ai_ml"]
}
