package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/process-tracker-api/internal/database"
	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrProcessNotFound is returned when a process lookup matches nothing.
var ErrProcessNotFound = errors.New("process repository: process not found")

// GormProcessRepository is a GORM implementation of ProcessRepository
type GormProcessRepository struct {
	db *gorm.DB
}

// NewProcessRepository creates a new ProcessRepository
func NewProcessRepository(db *gorm.DB) ProcessRepository {
	return &GormProcessRepository{db: db}
}

func (r *GormProcessRepository) WithTx(tx *gorm.DB) ProcessRepository {
	return &GormProcessRepository{db: tx}
}

func orderedStages(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}})
}

// ListByUser returns every process owned by userID
func (r *GormProcessRepository) ListByUser(ctx context.Context, userID uint64) ([]models.Process, error) {
	var processes []models.Process
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&processes).Error; err != nil {
		return nil, fmt.Errorf("failed to list processes for user %d: %w", userID, err)
	}
	return processes, nil
}

// ListPage returns one page of userID's processes with stages, newest first
func (r *GormProcessRepository) ListPage(ctx context.Context, userID uint64, params utils.PaginationParams) ([]models.Process, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Process{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count processes for user %d: %w", userID, err)
	}

	var processes []models.Process
	if err := query.
		Scopes(database.Paginate(params)).
		Preload("Stages", orderedStages).
		Order("created_at DESC").
		Order("id DESC").
		Find(&processes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list processes for user %d: %w", userID, err)
	}

	return processes, total, nil
}

// FindByID finds a process by ID with its stages in order
func (r *GormProcessRepository) FindByID(ctx context.Context, id uint64) (*models.Process, error) {
	var process models.Process
	err := r.db.WithContext(ctx).Preload("Stages", orderedStages).First(&process, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProcessNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find process %d: %w", id, err)
	}
	return &process, nil
}

// Delete removes a process and its stages in a transaction
func (r *GormProcessRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("process_id = ?", id).Delete(&models.Stage{}).Error; err != nil {
			return fmt.Errorf("failed to delete stages of process %d: %w", id, err)
		}

		if err := tx.Delete(&models.Process{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete process %d: %w", id, err)
		}

		return nil
	})
}

// Reassign moves a process to another owner without touching its content
func (r *GormProcessRepository) Reassign(ctx context.Context, processID, userID uint64) error {
	err := r.db.WithContext(ctx).Model(&models.Process{}).
		Where("id = ?", processID).
		UpdateColumns(map[string]interface{}{
			"user_id":    userID,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reassign process %d to user %d: %w", processID, userID, err)
	}
	return nil
}
