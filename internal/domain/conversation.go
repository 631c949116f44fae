package domain

// Conversation is a record owned by the remote conversation service.
type Conversation struct {
	ID        ID     `json:"id"`
	UserID    ID     `json:"user_id"`
	Agent     string `json:"agent"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at,omitempty"`
}
