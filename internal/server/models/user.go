package models

import "time"

type User struct {
	ID              string
	Email           string
	DisplayName     string
	PreferredLocale string
	PasswordHash    string
	CreatedAt       time.Time
}
