package models

import "time"

// Feedback may be anonymous, in which case UserID is nil and Name/Email are
// filled from the submission form.
type Feedback struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	UserID    *uint64   `gorm:"index" json:"user_id"`
	Name      *string   `gorm:"type:varchar(100)" json:"name"`
	Email     *string   `gorm:"type:varchar(200)" json:"email"`
	Message   string    `gorm:"type:varchar(2000);not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (Feedback) TableName() string {
	return "feedback"
}
