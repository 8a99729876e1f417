package models

import "time"

type TaskRecord struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	DueLabel   string     `json:"dueLabel"`
	Overdue    bool       `json:"overdue"`
	URL        string     `json:"url,omitempty"`
	DueInstant *time.Time `json:"dueInstant,omitempty"`
}
