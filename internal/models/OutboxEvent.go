package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxEvent is a side effect (calendar entry, email, sms) recorded in the same
// transaction as the write that caused it and delivered later.
type OutboxEvent struct {
	ID            string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Kind          string     `json:"kind" gorm:"type:varchar(20);not null;index"`
	AggregateID   string     `json:"aggregate_id" gorm:"type:varchar(36);not null;index"`
	Payload       string     `json:"payload" gorm:"type:text;not null"`
	AttemptCount  int        `json:"attempt_count" gorm:"not null"`
	NextAttemptAt time.Time  `json:"next_attempt_at" gorm:"not null;index"`
	LastError     *string    `json:"last_error"`
	DeliveredAt   *time.Time `json:"delivered_at" gorm:"index"`
	ExternalID    *string    `json:"external_id"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
