package models

import "time"

// User represents an account that can submit scans.
// Maps to: users table
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	BirthYear    int       `db:"birth_year" json:"birth_year"`
	Gender       string    `db:"gender" json:"gender"`
	BloodGroup   string    `db:"blood_group" json:"blood_group"`
	Address      string    `db:"address" json:"address"`
	RegisteredAt time.Time `db:"register_date" json:"register_date"`
}
