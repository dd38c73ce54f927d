package common

import (
	"github.com/google/uuid"
)

// NewManuscriptID generates a unique manuscript ID with the "man_" prefix
// Format: man_<uuid>
func NewManuscriptID() string {
	return "man_" + uuid.New().String()
}

// NewCharacterID generates a unique character ID with the "char_" prefix
// Format: char_<uuid>
func NewCharacterID() string {
	return "char_" + uuid.New().String()
}
