package model

// SendMessage is the send_message payload. Username has to fit the
// messages.username column.
type SendMessage struct {
	Username string `json:"username" validate:"required,max=100"`
	Content  string `json:"content" validate:"required"`
}

// Typing is the payload for typing, stop_typing and their user_* notices.
type Typing struct {
	Username string `json:"username"`
}

// UserCount is the user_count payload.
type UserCount struct {
	Count int `json:"count"`
}

// ErrorNotice is the error payload sent back to a single connection.
type ErrorNotice struct {
	Message string `json:"message"`
}
