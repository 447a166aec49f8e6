package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
)

// CreateInteraction 非可重复类型已存在时返回 Conflict，由唯一索引 idx_interaction_once 保证
func (s *Store) CreateInteraction(ctx context.Context, in *models.Interaction) error {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	// 放在子事务里，外层事务中冲突时只回滚到保存点
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(in).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		s.log.Debug("duplicate interaction", "user_id", in.UserID, "item_id", in.ItemID, "kind", in.Kind)
		return apperr.Conflict("%s already recorded for %s", in.Kind, in.ItemID)
	}
	if err != nil {
		return fmt.Errorf("create interaction: %w", err)
	}
	return nil
}
