package models

import "time"

// Status is the lifecycle state of a scheduled send.
type Status string

// Scheduled send lifecycle states
const (
	StatusPending       Status = "pending"
	StatusDispatching   Status = "dispatching"
	StatusSent          Status = "sent"
	StatusPartiallySent Status = "partially_sent"
	StatusFailed        Status = "failed"
	StatusCancelled     Status = "cancelled"
	StatusArchived      Status = "archived"
)

// MaxStoredErrors bounds how many per-recipient failure descriptions
// are kept on a scheduled send's error_message.
const MaxStoredErrors = 5

// ScheduledSend represents one future delivery of one message to one
// recipient group. Recipients are resolved from the group at dispatch
// time, not at creation time.
type ScheduledSend struct {
	ID             int64      `json:"id"`
	MessageID      int64      `json:"message_id"`
	GroupID        int64      `json:"group_id"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	Status         Status     `json:"status"`
	DispatchHandle *string    `json:"dispatch_handle,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ScheduleFilter holds filtering options for listing scheduled sends
type ScheduleFilter struct {
	Status Status
	Skip   int
	Limit  int
}

// DispatchJob is the queue payload for one delivery attempt.
// Handle is the opaque token persisted on the record at enqueue time.
type DispatchJob struct {
	ScheduleID int64  `json:"schedule_id"`
	Handle     string `json:"handle"`
}

// IsValidStatus checks if the status is a known lifecycle state
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusDispatching, StatusSent, StatusPartiallySent,
		StatusFailed, StatusCancelled, StatusArchived:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is a dispatch outcome or a
// user-applied end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSent, StatusPartiallySent, StatusFailed, StatusCancelled, StatusArchived:
		return true
	default:
		return false
	}
}

// CanCancel reports whether a user cancel action is legal.
// Cancellation is only legal before dispatch has begun.
func (s *ScheduledSend) CanCancel() bool {
	return s.Status == StatusPending
}

// CanArchive reports whether a user archive action is legal.
func (s *ScheduledSend) CanArchive() bool {
	return s.Status != StatusArchived
}

// CanSendNow reports whether an immediate re-dispatch is legal.
func (s *ScheduledSend) CanSendNow() bool {
	return s.Status == StatusPending || s.Status == StatusFailed
}

// CanDelete reports whether the record may be deleted. Sends that are
// in flight or already delivered are kept for the audit trail.
func (s *ScheduledSend) CanDelete() bool {
	switch s.Status {
	case StatusPending, StatusCancelled, StatusFailed, StatusArchived:
		return true
	default:
		return false
	}
}

// Dispatchable reports whether the delivery worker should process the
// record. Cancelled and archived sends are skipped; every other state
// may be (re-)dispatched, which keeps duplicate queue deliveries safe.
func (s *ScheduledSend) Dispatchable() bool {
	return s.Status != StatusCancelled && s.Status != StatusArchived
}
