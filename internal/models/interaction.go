package models

import (
	"time"

	"github.com/google/uuid"
)

type InteractionKind string

const (
	InteractionView  InteractionKind = "view"
	InteractionLike  InteractionKind = "like"
	InteractionSave  InteractionKind = "save"
	InteractionShare InteractionKind = "share"
)

// Repeatable view 可重复记录，其余类型重复时视为冲突
func (k InteractionKind) Repeatable() bool { return k == InteractionView }

func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionView, InteractionLike, InteractionSave, InteractionShare:
		return true
	}
	return false
}

type Interaction struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID       `json:"user_id" gorm:"type:uuid;index:idx_interaction_lookup"`
	ItemType  ItemType        `json:"item_type" gorm:"index:idx_interaction_lookup"`
	ItemID    string          `json:"item_id" gorm:"index:idx_interaction_lookup"`
	Kind      InteractionKind `json:"kind" gorm:"index:idx_interaction_lookup"`
	CreatedAt time.Time       `json:"created_at"`
}
