package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
)

// 内容类型偏好的合法键
const ContentTypeDiscussion = "discussion"

var ContentTypeKeys = []string{string(ItemTypeNote), string(ItemTypeLink), string(ItemTypePaper), ContentTypeDiscussion}

// DefaultWeight 未设置的权重一律取区间中值
const DefaultWeight = 50

// FeedBehavior 信息流行为偏好，均为 [0,100]；nil 表示未设置
type FeedBehavior struct {
	RecencyWeight       *float64 `json:"recency_weight,omitempty"`
	PopularityWeight    *float64 `json:"popularity_weight,omitempty"`
	DiversityImportance *float64 `json:"diversity_importance,omitempty"`
}

// PreferenceProfile 用户偏好，Version 便于以后迁移
type PreferenceProfile struct {
	Version            int                `json:"version"`
	ContentTypeWeights map[string]float64 `json:"content_type_weights,omitempty"`
	CategoryWeights    map[string]float64 `json:"category_weights,omitempty"`
	FeedBehavior       FeedBehavior       `json:"feed_behavior"`
}

const PreferenceProfileVersion = 1

func (p PreferenceProfile) ContentTypeWeight(t string) float64 {
	if w, ok := p.ContentTypeWeights[t]; ok {
		return w
	}
	return DefaultWeight
}

// CategoryWeight 第二个返回值表示用户是否显式设置过
func (p PreferenceProfile) CategoryWeight(category string) (float64, bool) {
	w, ok := p.CategoryWeights[category]
	if !ok {
		return DefaultWeight, false
	}
	return w, true
}

func (p PreferenceProfile) RecencyWeight() float64 {
	return valueOr(p.FeedBehavior.RecencyWeight, DefaultWeight)
}

func (p PreferenceProfile) PopularityWeight() float64 {
	return valueOr(p.FeedBehavior.PopularityWeight, DefaultWeight)
}

func (p PreferenceProfile) DiversityImportance() float64 {
	return valueOr(p.FeedBehavior.DiversityImportance, DefaultWeight)
}

// Validate 所有权重必须在 [0,100] 内，内容类型键受限
func (p PreferenceProfile) Validate() error {
	var errs []apperr.FieldError
	allowed := make(map[string]bool, len(ContentTypeKeys))
	for _, k := range ContentTypeKeys {
		allowed[k] = true
	}
	for k, w := range p.ContentTypeWeights {
		if !allowed[k] {
			errs = append(errs, apperr.FieldError{Field: "content_type_weights." + k, Message: "unknown content type"})
			continue
		}
		if !inRange(w) {
			errs = append(errs, apperr.FieldError{Field: "content_type_weights." + k, Message: "must be within [0,100]"})
		}
	}
	for k, w := range p.CategoryWeights {
		if k == "" {
			errs = append(errs, apperr.FieldError{Field: "category_weights", Message: "empty category name"})
			continue
		}
		if !inRange(w) {
			errs = append(errs, apperr.FieldError{Field: "category_weights." + k, Message: "must be within [0,100]"})
		}
	}
	for name, w := range map[string]*float64{
		"recency_weight":       p.FeedBehavior.RecencyWeight,
		"popularity_weight":    p.FeedBehavior.PopularityWeight,
		"diversity_importance": p.FeedBehavior.DiversityImportance,
	} {
		if w != nil && !inRange(*w) {
			errs = append(errs, apperr.FieldError{Field: "feed_behavior." + name, Message: "must be within [0,100]"})
		}
	}
	return apperr.NewValidation(errs)
}

func inRange(w float64) bool { return w >= 0 && w <= 100 }

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// User 用户，认证不在本服务范围内
type User struct {
	ID          uuid.UUID                             `json:"id" gorm:"type:uuid;primaryKey"`
	DisplayName string                                `json:"display_name"`
	Preferences datatypes.JSONType[PreferenceProfile] `json:"preferences"`
	CreatedAt   time.Time                             `json:"created_at"`
	UpdatedAt   time.Time                             `json:"updated_at"`
}

func (u User) String() string { return fmt.Sprintf("user(%s)", u.ID) }
