package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user. Registration and session management
// live outside this service; users arrive here through the auth middleware.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Name      *string   `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
