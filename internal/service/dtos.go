package service

import (
	"time"

	"github.com/mwangaza7/message-scheduler-backend/internal/models"
)

// CreateScheduleRequest is the payload for scheduling a send
type CreateScheduleRequest struct {
	MessageID     int64     `json:"message_id"`
	GroupID       int64     `json:"group_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

// Validate performs validation on the request
func (r *CreateScheduleRequest) Validate() error {
	if r.MessageID <= 0 {
		return models.ErrInvalidInput("message_id is required")
	}
	if r.GroupID <= 0 {
		return models.ErrInvalidInput("group_id is required")
	}
	if r.ScheduledTime.IsZero() {
		return models.ErrInvalidInput("scheduled_time is required")
	}
	return nil
}

// SendNowResult reports the handle of the immediately enqueued dispatch
type SendNowResult struct {
	ScheduleID int64  `json:"schedule_id"`
	Handle     string `json:"handle"`
	Status     string `json:"status"`
}

// CreateMessageRequest is the payload for creating a message
type CreateMessageRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CreateRecipientRequest is the payload for creating a recipient
type CreateRecipientRequest struct {
	Name        string  `json:"name"`
	PhoneNumber string  `json:"phone_number"`
	GroupIDs    []int64 `json:"group_ids,omitempty"`
}

// CreateGroupRequest is the payload for creating a recipient group
type CreateGroupRequest struct {
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	RecipientIDs []int64 `json:"recipient_ids,omitempty"`
}
