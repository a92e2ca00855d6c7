package models

import (
	"strings"
	"time"
)

// Message is the immutable text payload referenced by scheduled sends
type Message struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Validate performs validation on message data
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return ErrInvalidInput("title is required")
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrInvalidInput("content is required")
	}
	return nil
}
