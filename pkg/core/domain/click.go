package domain

import "time"

// Click represents a single recorded visit to a short link
type Click struct {
	ID        int64     `json:"id"`
	LinkID    int64     `json:"link_id"`
	Referer   string    `json:"referer,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VisitMeta carries request details stored alongside a click
type VisitMeta struct {
	Referer   string
	UserAgent string
}

// VisitDrift is a link whose counter disagrees with its click rows
type VisitDrift struct {
	LinkID int64  `json:"link_id"`
	Code   string `json:"code"`
	Visits int64  `json:"visits"`
	Clicks int64  `json:"clicks"`
}
