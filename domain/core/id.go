package core

import (
	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// SessionID identifies one analysis session (one browser session in the web client)
type SessionID ID

// NewSessionID creates a fresh session identifier
func NewSessionID() SessionID { return SessionID(NewID()) }

func (id SessionID) String() string { return ID(id).String() }
