// Package model defines data structure.
package model

import "time"

// Message holds a single stored chat message. The JSON form is the
// new_message payload and the list-messages row.
type Message struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
