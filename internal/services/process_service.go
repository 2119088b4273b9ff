package services

import (
	"context"
	"errors"

	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/repository"
	"github.com/yukikurage/process-tracker-api/internal/utils"
)

var ErrProcessNotFound = errors.New("process not found")

// ProcessService exposes read access to a user's application processes.
type ProcessService struct {
	processRepo repository.ProcessRepository
}

func NewProcessService(processRepo repository.ProcessRepository) *ProcessService {
	return &ProcessService{
		processRepo: processRepo,
	}
}

// ListProcesses returns one page of the user's processes and the total count.
func (s *ProcessService) ListProcesses(ctx context.Context, userID uint64, params utils.PaginationParams) ([]models.Process, int64, error) {
	return s.processRepo.ListPage(ctx, userID, params)
}

// GetProcess returns a process owned by userID. Processes of other users are
// reported as not found.
func (s *ProcessService) GetProcess(ctx context.Context, userID, processID uint64) (*models.Process, error) {
	process, err := s.processRepo.FindByID(ctx, processID)
	if err != nil {
		if errors.Is(err, repository.ErrProcessNotFound) {
			return nil, ErrProcessNotFound
		}
		return nil, err
	}

	if process.UserID != userID {
		return nil, ErrProcessNotFound
	}

	return process, nil
}
