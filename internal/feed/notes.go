package feed

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/smerrill2/social-learning-app-sub001/internal/apperr"
	"github.com/smerrill2/social-learning-app-sub001/internal/models"
)

const (
	MaxNoteLength = 10000
	MaxNoteTags   = 20
)

type NoteInput struct {
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

func (in NoteInput) validate() error {
	var errs []apperr.FieldError
	n := utf8.RuneCountInString(strings.TrimSpace(in.Content))
	if n == 0 {
		errs = append(errs, apperr.FieldError{Field: "content", Message: "is required"})
	} else if n > MaxNoteLength {
		errs = append(errs, apperr.FieldError{Field: "content", Message: fmt.Sprintf("must be at most %d characters", MaxNoteLength)})
	}
	if len(in.Tags) > MaxNoteTags {
		errs = append(errs, apperr.FieldError{Field: "tags", Message: fmt.Sprintf("at most %d tags", MaxNoteTags)})
	}
	return apperr.NewValidation(errs)
}

// CreateNote 保存笔记并让 feed 缓存失效
func (s *Service) CreateNote(ctx context.Context, userID uuid.UUID, in NoteInput) (*models.Note, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	note := &models.Note{
		ID:       uuid.New(),
		UserID:   userID,
		Content:  strings.TrimSpace(in.Content),
		Category: strings.TrimSpace(in.Category),
		Tags:     datatypes.JSONSlice[string](tags),
	}
	if err := s.store.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	s.Invalidate(ctx, userID)
	return note, nil
}

func (s *Service) DeleteNote(ctx context.Context, userID, noteID uuid.UUID) error {
	if err := s.store.DeleteNote(ctx, userID, noteID); err != nil {
		return err
	}
	s.Invalidate(ctx, userID)
	return nil
}

func (s *Service) ListNotes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Note, Pagination, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if err := validatePage(limit, offset); err != nil {
		return nil, Pagination{}, err
	}
	notes, total, err := s.store.ListNotes(ctx, userID, limit, offset)
	if err != nil {
		return nil, Pagination{}, err
	}
	return notes, Pagination{
		Limit:   limit,
		Offset:  offset,
		Total:   int(total),
		HasMore: int64(offset+len(notes)) < total,
	}, nil
}

type InteractionInput struct {
	ItemType models.ItemType        `json:"item_type"`
	ItemID   string                 `json:"item_id"`
	Kind     models.InteractionKind `json:"kind"`
}

// RecordInteraction 非 view 类型重复记录时返回 Conflict
func (s *Service) RecordInteraction(ctx context.Context, userID uuid.UUID, in InteractionInput) (*models.Interaction, error) {
	var errs []apperr.FieldError
	switch in.ItemType {
	case models.ItemTypeNote, models.ItemTypeLink, models.ItemTypePaper:
	default:
		errs = append(errs, apperr.FieldError{Field: "item_type", Message: "must be note, link or paper"})
	}
	if strings.TrimSpace(in.ItemID) == "" {
		errs = append(errs, apperr.FieldError{Field: "item_id", Message: "is required"})
	}
	if !in.Kind.Valid() {
		errs = append(errs, apperr.FieldError{Field: "kind", Message: "must be view, like, save or share"})
	}
	if err := apperr.NewValidation(errs); err != nil {
		return nil, err
	}

	rec := &models.Interaction{
		ID:       uuid.New(),
		UserID:   userID,
		ItemType: in.ItemType,
		ItemID:   strings.TrimSpace(in.ItemID),
		Kind:     in.Kind,
	}
	if err := s.store.CreateInteraction(ctx, rec); err != nil {
		return nil, err
	}
	s.Invalidate(ctx, userID)
	return rec, nil
}
