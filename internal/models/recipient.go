package models

import (
	"strings"
	"time"
)

// Recipient is one deliverable destination. The phone number is the
// unique contact identifier used by the delivery gateway.
type Recipient struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecipientGroup is a named set of recipients. Membership is resolved
// at dispatch time, so edits apply to sends scheduled earlier.
type RecipientGroup struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// GroupWithRecipients combines a group with its current members
type GroupWithRecipients struct {
	RecipientGroup
	Recipients []*Recipient `json:"recipients"`
}

// Validate performs validation on recipient data
func (r *Recipient) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidInput("name is required")
	}
	if strings.TrimSpace(r.PhoneNumber) == "" {
		return ErrInvalidInput("phone_number is required")
	}
	return nil
}

// Validate performs validation on group data
func (g *RecipientGroup) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrInvalidInput("name is required")
	}
	return nil
}
