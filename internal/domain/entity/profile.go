package entity

import (
	"time"
)

// Profile is the business-level user record owned by the local profile store.
// Credentials never live here; the identity provider is the system of record
// for passwords and token issuance.
type Profile struct {
	ID          string
	Name        string
	CompanyName string
	LastName    string
	Email       string
	PhoneNumber string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
