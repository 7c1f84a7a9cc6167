package models

import "time"

type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Admin        bool      `json:"admin" db:"is_admin"`
	Automated    bool      `json:"automated" db:"is_automated"`
	APIKeyHash   *string   `json:"-" db:"api_key_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
