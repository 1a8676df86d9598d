package domain

// CreateMessageRequest is the payload of POST /api/messages.
type CreateMessageRequest struct {
	Sender  SenderRef `json:"sender" binding:"required"`
	Content string    `json:"content" binding:"required,max=2000"`
	Type    string    `json:"type" binding:"omitempty,oneof=CHAT JOIN LEAVE"`
}

// SenderRef identifies the author of a message by id.
type SenderRef struct {
	ID int64 `json:"id" binding:"required,gt=0"`
}

// CreateUserRequest is the payload of POST /api/users.
type CreateUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}
