package domain

// WebhookConfig is the active downstream delivery target.
type WebhookConfig struct {
	URL     string
	Secret  string
	Retries int
}

// WebhookPayload is the normalized message copy delivered to the webhook sink.
type WebhookPayload struct {
	SenderID  string  `json:"sender_id"`
	Content   string  `json:"content"`
	Timestamp string  `json:"timestamp"`
	GroupID   *string `json:"group_id"`
}
