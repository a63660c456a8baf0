package model

type RemixRequest struct {
	Content string `json:"content"`
	Style   string `json:"style" binding:"omitempty,max=32"`
}

type RemixResponse struct {
	Output   string      `json:"output"`
	Style    string      `json:"style"`
	UsesLeft interface{} `json:"uses_left"`
}

type UpdateSubscriptionRequest struct {
	SubscriptionID string `json:"subscription_id" binding:"required,max=255"`
}
