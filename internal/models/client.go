package models

import "time"

// Client owns accounts and goals and shares budgets with other clients.
type Client struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Version   int64     `json:"version"`
}
