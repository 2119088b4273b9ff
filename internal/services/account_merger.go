package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yukikurage/process-tracker-api/internal/metrics"
	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrMergeSameAccount = errors.New("cannot merge an account into itself")
	ErrMergeAccountGone = errors.New("merge account no longer exists")
	ErrMergeNilAccount  = errors.New("merge requires both accounts")
)

// MergeReport summarizes what a merge moved.
type MergeReport struct {
	SourceID          uint64
	TargetID          uint64
	MovedProcesses    int
	ReplacedProcesses int
	MovedFeedback     int64
}

// AccountMerger folds one account into another. Processes of the source win
// over colliding processes of the target; the source row is deleted.
type AccountMerger struct {
	db        *gorm.DB
	users     repository.UserRepository
	processes repository.ProcessRepository
	feedback  repository.FeedbackRepository
}

// NewAccountMerger creates a new AccountMerger.
func NewAccountMerger(db *gorm.DB, users repository.UserRepository, processes repository.ProcessRepository, feedback repository.FeedbackRepository) *AccountMerger {
	return &AccountMerger{
		db:        db,
		users:     users,
		processes: processes,
		feedback:  feedback,
	}
}

// WithTx returns a merger that runs inside tx. Merge then uses a savepoint so
// a failed merge still rolls back on its own.
func (m *AccountMerger) WithTx(tx *gorm.DB) *AccountMerger {
	return &AccountMerger{
		db:        tx,
		users:     m.users,
		processes: m.processes,
		feedback:  m.feedback,
	}
}

// Merge moves every process and feedback row of source onto target and then
// deletes source. Nothing is written when any step fails.
func (m *AccountMerger) Merge(ctx context.Context, source, target *models.User) (*MergeReport, error) {
	if source == nil || target == nil {
		return nil, ErrMergeNilAccount
	}
	if source.ID == target.ID {
		return nil, ErrMergeSameAccount
	}

	report := &MergeReport{SourceID: source.ID, TargetID: target.ID}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := m.users.WithTx(tx)
		processes := m.processes.WithTx(tx)

		// Lock both rows; a concurrent merge of either account waits here.
		for _, id := range []uint64{source.ID, target.ID} {
			user, err := users.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("%w: user %d", ErrMergeAccountGone, id)
			}
		}

		targetProcesses, err := processes.ListByUser(ctx, target.ID)
		if err != nil {
			return err
		}
		byKey := make(map[models.ProcessKey]uint64, len(targetProcesses))
		for _, p := range targetProcesses {
			byKey[p.Key()] = p.ID
		}

		sourceProcesses, err := processes.ListByUser(ctx, source.ID)
		if err != nil {
			return err
		}

		for _, p := range sourceProcesses {
			key := p.Key()
			if existingID, ok := byKey[key]; ok {
				if err := processes.Delete(ctx, existingID); err != nil {
					return err
				}
				delete(byKey, key)
				report.ReplacedProcesses++
			}

			if err := processes.Reassign(ctx, p.ID, target.ID); err != nil {
				return err
			}
			report.MovedProcesses++
		}

		moved, err := m.feedback.WithTx(tx).ReassignOwner(ctx, source.ID, target.ID)
		if err != nil {
			return err
		}
		report.MovedFeedback = moved

		return users.Delete(ctx, source.ID)
	})
	if err != nil {
		metrics.Merges.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("merge user %d into %d: %w", source.ID, target.ID, err)
	}

	metrics.Merges.WithLabelValues("completed").Inc()
	metrics.MergedProcesses.WithLabelValues("replaced").Add(float64(report.ReplacedProcesses))
	metrics.MergedProcesses.WithLabelValues("moved").Add(float64(report.MovedProcesses - report.ReplacedProcesses))

	slog.InfoContext(ctx, "accounts merged",
		"source_user_id", report.SourceID,
		"target_user_id", report.TargetID,
		"moved_processes", report.MovedProcesses,
		"replaced_processes", report.ReplacedProcesses,
		"moved_feedback", report.MovedFeedback,
	)

	return report, nil
}
