package character

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Gateway when no character has the requested id
var ErrNotFound = errors.New("character not found")

// Gateway provides read access to character sheets.
// Implementations return ErrNotFound (possibly wrapped) for unknown ids.
type Gateway interface {
	GetCharacter(ctx context.Context, id string) (*Character, error)
}
