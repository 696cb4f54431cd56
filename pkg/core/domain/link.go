package domain

import "time"

// Link represents a shortened URL
type Link struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	BaseURL   string    `json:"base_url"`
	Code      string    `json:"code"`
	Visits    int64     `json:"visits"` // Incremented only by click recording
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
