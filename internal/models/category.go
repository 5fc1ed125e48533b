package models

// Category groups transactions and scopes budgets. Categories are shared by all clients.
type Category struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int64  `json:"version"`
}
