package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
)

func (s *Store) CreateNote(ctx context.Context, note *models.Note) error {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// DeleteNote 只能删除自己的笔记
func (s *Store) DeleteNote(ctx context.Context, userID, noteID uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", noteID, userID).Delete(&models.Note{})
	if res.Error != nil {
		return fmt.Errorf("delete note: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("note %s", noteID)
	}
	return nil
}

func (s *Store) ListNotes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Note, int64, error) {
	var total int64
	q := s.db.WithContext(ctx).Model(&models.Note{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}
	var notes []models.Note
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&notes).Error; err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	return notes, total, nil
}

// RecentNotes keywords 非空时按内容、分类和标签做整词匹配
func (s *Store) RecentNotes(ctx context.Context, userID uuid.UUID, keywords []string, limit int) ([]models.Note, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	q = keywordFilter(q, keywords, "content", "category", "tags::text")
	var notes []models.Note
	if err := q.Order("created_at DESC").Limit(limit).Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("recent notes: %w", err)
	}
	return notes, nil
}

func (s *Store) RecentStories(ctx context.Context, since time.Time, keywords []string, limit int) ([]models.Story, error) {
	q := s.db.WithContext(ctx).Where("published_at >= ?", since)
	q = keywordFilter(q, keywords, "title", "text")
	var stories []models.Story
	if err := q.Order("published_at DESC").Limit(limit).Find(&stories).Error; err != nil {
		return nil, fmt.Errorf("recent stories: %w", err)
	}
	return stories, nil
}

func (s *Store) RecentPapers(ctx context.Context, since time.Time, keywords []string, limit int) ([]models.Paper, error) {
	q := s.db.WithContext(ctx).Where("published_at >= ?", since)
	q = keywordFilter(q, keywords, "title", "abstract")
	var papers []models.Paper
	if err := q.Order("published_at DESC").Limit(limit).Find(&papers).Error; err != nil {
		return nil, fmt.Errorf("recent papers: %w", err)
	}
	return papers, nil
}

// UpsertStories 以 hn_id 去重，已存在时刷新分数和评论数
func (s *Store) UpsertStories(ctx context.Context, stories []models.Story) error {
	if len(stories) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hn_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "score", "comment_count", "updated_at"}),
	}).Create(&stories).Error
}

// UpsertPapers 以 url 去重
func (s *Store) UpsertPapers(ctx context.Context, papers []models.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoNothing: true,
	}).Create(&papers).Error
}

type SourceStat struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// SourceStats 各来源条目数
func (s *Store) SourceStats(ctx context.Context) ([]SourceStat, error) {
	db := s.db.WithContext(ctx)
	var notes, stories, papers int64
	if err := db.Model(&models.Note{}).Count(&notes).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Story{}).Count(&stories).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Paper{}).Count(&papers).Error; err != nil {
		return nil, err
	}
	return []SourceStat{
		{Source: models.SourceNotes, Count: notes},
		{Source: models.SourceHackerNews, Count: stories},
		{Source: models.SourceArxiv, Count: papers},
	}, nil
}
