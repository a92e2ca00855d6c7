package models

// Default and maximum page sizes for list endpoints
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// ListResult wraps a listing with its offset window and total count
type ListResult[T any] struct {
	Data  []T   `json:"data"`
	Skip  int   `json:"skip"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// ClampListWindow validates skip/limit parameters and applies defaults
func ClampListWindow(skip, limit *int) {
	if *skip < 0 {
		*skip = 0
	}
	if *limit < 1 {
		*limit = DefaultListLimit
	}
	if *limit > MaxListLimit {
		*limit = MaxListLimit
	}
}
