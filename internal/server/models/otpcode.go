package models

import "time"

// OTPCode is the latest one-time code issued for an email. Only the SHA-256
// hash of the code is stored.
type OTPCode struct {
	Email     string
	CodeHash  []byte
	ExpiresAt time.Time
	Attempts  int
}
