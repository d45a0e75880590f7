package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/domain"
	"gorm.io/gorm"
)

type StageTransitionRepository struct {
	db *gorm.DB
}

func NewStageTransitionRepository(db *gorm.DB) *StageTransitionRepository {
	return &StageTransitionRepository{db: db}
}

// WithTx returns a copy of the repository bound to a transaction
func (r *StageTransitionRepository) WithTx(tx *gorm.DB) *StageTransitionRepository {
	return &StageTransitionRepository{db: tx}
}

// Create records a new stage transition
func (r *StageTransitionRepository) Create(ctx context.Context, transition *domain.StageTransition) error {
	return r.db.WithContext(ctx).Create(transition).Error
}

// GetByItem returns the full history for an item, newest first
func (r *StageTransitionRepository) GetByItem(ctx context.Context, itemType domain.TransitionItemType, itemID uuid.UUID) ([]domain.StageTransition, error) {
	var history []domain.StageTransition
	err := r.db.WithContext(ctx).
		Where("item_type = ? AND item_id = ?", itemType, itemID).
		Order("changed_at DESC").
		Find(&history).Error
	return history, err
}

// GetLatestByItem returns the most recent transition for an item
func (r *StageTransitionRepository) GetLatestByItem(ctx context.Context, itemType domain.TransitionItemType, itemID uuid.UUID) (*domain.StageTransition, error) {
	var transition domain.StageTransition
	err := r.db.WithContext(ctx).
		Where("item_type = ? AND item_id = ?", itemType, itemID).
		Order("changed_at DESC").
		First(&transition).Error
	if err != nil {
		return nil, err
	}
	return &transition, nil
}

// GetByUserID returns recent transitions made by a specific user
func (r *StageTransitionRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.StageTransition, error) {
	var history []domain.StageTransition
	err := r.db.WithContext(ctx).
		Where("changed_by_id = ?", userID).
		Order("changed_at DESC").
		Limit(limit).
		Find(&history).Error
	return history, err
}

// CountTransitionsToStage returns the count of transitions into each stage
// within a date range
func (r *StageTransitionRepository) CountTransitionsToStage(ctx context.Context, from, to time.Time) (map[domain.PipelineStatus]int64, error) {
	type result struct {
		ToStage domain.PipelineStatus
		Count   int64
	}
	var results []result

	err := r.db.WithContext(ctx).Model(&domain.StageTransition{}).
		Select("to_stage, COUNT(*) as count").
		Where("changed_at >= ? AND changed_at <= ?", from, to).
		Group("to_stage").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.PipelineStatus]int64)
	for _, r := range results {
		counts[r.ToStage] = r.Count
	}
	return counts, nil
}

// RecordTransition is a convenience method to append a history record
func (r *StageTransitionRepository) RecordTransition(
	ctx context.Context,
	itemType domain.TransitionItemType,
	itemID uuid.UUID,
	fromStage *domain.PipelineStatus,
	toStage domain.PipelineStatus,
	changedByID uuid.UUID,
	changedByName string,
	note string,
) (*domain.StageTransition, error) {
	transition := &domain.StageTransition{
		ItemType:      itemType,
		ItemID:        itemID,
		FromStage:     fromStage,
		ToStage:       toStage,
		ChangedByID:   changedByID,
		ChangedByName: changedByName,
		Note:          note,
		ChangedAt:     time.Now().UTC(),
	}
	if err := r.Create(ctx, transition); err != nil {
		return nil, err
	}
	return transition, nil
}

// DeleteByItem removes all history for an item (used when the item is deleted)
func (r *StageTransitionRepository) DeleteByItem(ctx context.Context, itemType domain.TransitionItemType, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("item_type = ? AND item_id = ?", itemType, itemID).
		Delete(&domain.StageTransition{}).Error
}
