package models

import "time"

type Comment struct {
	ID        int64     `json:"id"`
	LoginID   int64     `json:"login_id"`
	Body      string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentRequest struct {
	Comment string `json:"comment"`
}
