package entity

import "time"

// User is a known actor
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	Persona   Persona   `json:"persona"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity is the resolved caller of a request
type Identity struct {
	UserID  string  `json:"user_id"`
	Email   string  `json:"email,omitempty"`
	Persona Persona `json:"persona"`
}
