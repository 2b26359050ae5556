package models

// Project groups conversations, optionally correlated to a custom GPT.
type Project struct {
	ID               int64   `json:"id" db:"id"`
	Name             string  `json:"name" db:"name"`
	Description      *string `json:"description" db:"description"`
	ChatGPTProjectID *string `json:"chatgpt_project_id" db:"chatgpt_project_id"`
	IsStarred        bool    `json:"is_starred" db:"is_starred"`
}
