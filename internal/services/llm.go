package services

import (
	"context"

	"github.com/jwebster45206/story-arbiter/pkg/narrative"
)

// Narrator turns an assembled prompt into narrative text for the player
type Narrator interface {
	Narrate(ctx context.Context, messages []narrative.Message) (string, error)
}
