package models

import "time"

type Stage struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	ProcessID uint64    `gorm:"not null;index" json:"process_id"`
	StageName string    `gorm:"type:varchar(100);not null" json:"stage_name"`
	StageDate time.Time `gorm:"not null" json:"stage_date"`
	Notes     *string   `gorm:"type:varchar(500)" json:"notes"`
	Order     int       `gorm:"column:order;not null" json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
