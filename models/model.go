package models

// Model is a selectable language model. Immutable once fetched.
type Model struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}
