package dto

import (
	"time"

	"github.com/yukikurage/process-tracker-api/internal/models"
)

// StageDTO represents a stage of a process in API responses
type StageDTO struct {
	ID        uint64    `json:"id"`
	StageName string    `json:"stage_name"`
	StageDate time.Time `json:"stage_date"`
	Notes     *string   `json:"notes"`
	Order     int       `json:"order"`
}

// ProcessDTO represents a process in API responses
type ProcessDTO struct {
	ID          uint64               `json:"id"`
	UserID      uint64               `json:"user_id"`
	CompanyName string               `json:"company_name"`
	Position    *string              `json:"position"`
	Status      models.ProcessStatus `json:"status"`
	IsPublic    bool                 `json:"is_public"`
	ShareID     *string              `json:"share_id,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Stages      []StageDTO           `json:"stages"`
}

// ProcessListResponse represents a paginated list of processes
type ProcessListResponse struct {
	Processes  []ProcessDTO `json:"processes"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalCount int64        `json:"total_count"`
	TotalPages int          `json:"total_pages"`
}

// ToStageDTO converts a Stage model to StageDTO
func ToStageDTO(stage models.Stage) StageDTO {
	return StageDTO{
		ID:        stage.ID,
		StageName: stage.StageName,
		StageDate: stage.StageDate,
		Notes:     stage.Notes,
		Order:     stage.Order,
	}
}

// ToProcessDTO converts a Process model to ProcessDTO
func ToProcessDTO(process models.Process) ProcessDTO {
	dto := ProcessDTO{
		ID:          process.ID,
		UserID:      process.UserID,
		CompanyName: process.CompanyName,
		Position:    process.Position,
		Status:      process.Status,
		IsPublic:    process.IsPublic,
		CreatedAt:   process.CreatedAt,
		UpdatedAt:   process.UpdatedAt,
		Stages:      make([]StageDTO, len(process.Stages)),
	}

	// Share ids are only meaningful for public processes
	if process.IsPublic {
		dto.ShareID = process.ShareID
	}

	for i, stage := range process.Stages {
		dto.Stages[i] = ToStageDTO(stage)
	}

	return dto
}

// ToProcessListResponse builds the paginated response for one page
func ToProcessListResponse(processes []models.Process, page, pageSize int, total int64) ProcessListResponse {
	items := make([]ProcessDTO, len(processes))
	for i, process := range processes {
		items[i] = ToProcessDTO(process)
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return ProcessListResponse{
		Processes:  items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}
}
