package dto

// AssistantQueryRequest carries a free-form search prompt.
type AssistantQueryRequest struct {
	Prompt string `json:"prompt" validate:"required,max=500"`
}
