package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProcessStatus string

const (
	ProcessStatusActive    ProcessStatus = "active"
	ProcessStatusCompleted ProcessStatus = "completed"
	ProcessStatusRejected  ProcessStatus = "rejected"
)

// PositionNone is the key value for a missing or blank position.
const PositionNone = "<none>"

type Process struct {
	ID          uint64        `gorm:"primarykey" json:"id"`
	UserID      uint64        `gorm:"not null;uniqueIndex:idx_processes_user_key,priority:1" json:"user_id"`
	CompanyName string        `gorm:"type:varchar(100);not null" json:"company_name"`
	Position    *string       `gorm:"type:varchar(200)" json:"position"`
	Status      ProcessStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	IsPublic    bool          `gorm:"not null;default:false" json:"is_public"`
	ShareID     *string       `gorm:"type:varchar(36);uniqueIndex" json:"share_id"`
	CompanyKey  string        `gorm:"type:varchar(100);not null;uniqueIndex:idx_processes_user_key,priority:2" json:"-"`
	PositionKey string        `gorm:"type:varchar(200);not null;uniqueIndex:idx_processes_user_key,priority:3" json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Relations
	User   User    `gorm:"foreignKey:UserID" json:"-"`
	Stages []Stage `gorm:"foreignKey:ProcessID;constraint:OnDelete:CASCADE" json:"stages,omitempty"`
}

// ProcessKey identifies a process within one user's collection.
type ProcessKey struct {
	Company  string
	Position string
}

// NewProcessKey builds the dedup key: company lowercased, position lowercased
// with nil and whitespace-only values collapsed to PositionNone.
func NewProcessKey(companyName string, position *string) ProcessKey {
	key := ProcessKey{
		Company:  strings.ToLower(strings.TrimSpace(companyName)),
		Position: PositionNone,
	}
	if position != nil {
		if p := strings.TrimSpace(*position); p != "" {
			key.Position = strings.ToLower(p)
		}
	}
	return key
}

// Key returns the dedup key of the process.
func (p *Process) Key() ProcessKey {
	return NewProcessKey(p.CompanyName, p.Position)
}

// BeforeSave keeps the persisted key columns in sync with the visible fields
// and gives public processes a share id.
func (p *Process) BeforeSave(tx *gorm.DB) error {
	key := p.Key()
	p.CompanyKey = key.Company
	p.PositionKey = key.Position
	if p.Status == "" {
		p.Status = ProcessStatusActive
	}
	if p.IsPublic && p.ShareID == nil {
		shareID := uuid.NewString()
		p.ShareID = &shareID
	}
	return nil
}
