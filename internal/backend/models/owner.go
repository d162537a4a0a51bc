package models

import "time"

type Owner struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	APIKeyPrefix string    `json:"-"`
	APIKeyHash   string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
