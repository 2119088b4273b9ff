package repository

import (
	"context"
	"fmt"

	"github.com/yukikurage/process-tracker-api/internal/models"
	"gorm.io/gorm"
)

// GormFeedbackRepository is a GORM implementation of FeedbackRepository
type GormFeedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository creates a new FeedbackRepository
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &GormFeedbackRepository{db: db}
}

func (r *GormFeedbackRepository) WithTx(tx *gorm.DB) FeedbackRepository {
	return &GormFeedbackRepository{db: tx}
}

// ReassignOwner moves every feedback row of fromUserID onto toUserID
func (r *GormFeedbackRepository) ReassignOwner(ctx context.Context, fromUserID, toUserID uint64) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("user_id = ?", fromUserID).
		Update("user_id", toUserID)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reassign feedback from user %d to %d: %w", fromUserID, toUserID, result.Error)
	}
	return result.RowsAffected, nil
}
