package validation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jwebster45206/story-arbiter/pkg/character"
	"github.com/jwebster45206/story-arbiter/pkg/textfilter"
)

const (
	RestShort = "short"
	RestLong  = "long"

	LocationFlagNoRest = "no_rest"
	LocationFlagUnsafe = "unsafe"
)

// daytime is when a long rest is unusual but still permitted
var daytime = map[string]bool{
	"morning":   true,
	"day":       true,
	"midday":    true,
	"noon":      true,
	"afternoon": true,
}

// RestValidator validates short and long rests
type RestValidator struct {
	base
}

// Ensure RestValidator implements Validator interface
var _ Validator = (*RestValidator)(nil)

func NewRestValidator(gateway character.Gateway, logger *slog.Logger) *RestValidator {
	return &RestValidator{base: newBase(gateway, logger)}
}

// Validate rejects rests during combat or at flagged locations. A long rest
// during the day is reported as an advisory and still passes.
func (v *RestValidator) Validate(ctx context.Context, req Request) Result {
	return v.withCharacter(ctx, "rest", req, func(c *character.Character) Result {
		restType := normalizeRestType(req.Params.RestType)

		if textfilter.EqualFold(req.GameState, GameStateCombat) {
			return Fail("You cannot rest during combat", map[string]any{"rest_type": restType})
		}

		if req.Params.LocationFlags[LocationFlagNoRest] {
			return Fail(locationReason("You cannot rest", req.Params.Location), map[string]any{"rest_type": restType})
		}
		if req.Params.LocationFlags[LocationFlagUnsafe] {
			return Fail(locationReason("It is not safe to rest", req.Params.Location), map[string]any{"rest_type": restType})
		}

		details := map[string]any{
			"rest_type":  restType,
			"hp_current": c.HitPoints.Current,
			"hp_max":     c.HitPoints.Max,
		}
		if actor, err := c.Actor(); err == nil {
			details["hp_current"] = actor.HP()
			details["hp_max"] = actor.MaxHP()
			details["knocked_out"] = actor.IsKnockedOut()
		}
		if die := character.HitDie(c.Class); die > 0 {
			details["hit_die"] = die
			details["hit_dice"] = c.Level
		}
		if restType == RestLong && daytime[textfilter.Fold(req.Params.TimeOfDay)] {
			details["advisory"] = "A long rest usually begins in the evening"
		}
		return Pass(details)
	})
}

func normalizeRestType(raw string) string {
	if strings.Contains(textfilter.Fold(raw), RestLong) {
		return RestLong
	}
	return RestShort
}

func locationReason(prefix, location string) string {
	if location == "" {
		return prefix + " here"
	}
	return prefix + " in " + location
}
