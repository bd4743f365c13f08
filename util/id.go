package util

import "github.com/gofrs/uuid/v5"

// NewID generates a random v4 UUID string, used for session ids and
// stream ids throughout the engine.
func NewID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil.String()
	}
	return id.String()
}
