package domain

import "github.com/google/uuid"

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.NewString()
}
