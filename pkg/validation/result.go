package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/story-arbiter/pkg/character"
)

// Kind classifies a failed validation so callers can tell rule violations
// from faults worth retrying.
type Kind string

const (
	KindInvalidAction Kind = "invalid_action"
	KindNotFound      Kind = "not_found"
	KindInternalError Kind = "internal_error"
)

// Result is the outcome of a validation. Reason is set iff Status is false.
type Result struct {
	Status  bool           `json:"status"`
	Reason  string         `json:"reason,omitempty"`
	Kind    Kind           `json:"kind,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Pass builds a successful result
func Pass(details map[string]any) Result {
	return Result{Status: true, Details: details}
}

// Fail builds a rule-violation result
func Fail(reason string, details map[string]any) Result {
	return Result{Status: false, Reason: reason, Kind: KindInvalidAction, Details: details}
}

// NotFound builds a result for a missing character
func NotFound(reason string) Result {
	return Result{Status: false, Reason: reason, Kind: KindNotFound}
}

// InternalError builds a result for an unexpected fault during validation
func InternalError(action string, err error) Result {
	return Result{
		Status: false,
		Reason: fmt.Sprintf("Error validating %s: %s", action, err.Error()),
		Kind:   KindInternalError,
	}
}

// Action names, as sent in Params.Action
const (
	ActionAttack     = "attack"
	ActionCastSpell  = "cast_spell"
	ActionUseFeature = "use_feature"
	ActionUseItem    = "use_item"
	ActionRest       = "rest"

	ItemActionTake      = "take"
	ItemActionDrop      = "drop"
	ItemActionEquip     = "equip"
	ItemActionUnequip   = "unequip"
	ItemActionInventory = "inventory"
)

// Params are the action parameters for a validation
type Params struct {
	Action        string          `json:"action,omitempty"`
	Weapon        string          `json:"weapon,omitempty"`
	Target        string          `json:"target,omitempty"`
	Spell         string          `json:"spell,omitempty"`
	Ritual        bool            `json:"ritual,omitempty"`
	Feature       string          `json:"feature,omitempty"`
	Item          string          `json:"item,omitempty"`
	RestType      string          `json:"rest_type,omitempty"`
	Location      string          `json:"location,omitempty"`
	LocationFlags map[string]bool `json:"location_flags,omitempty"`
	TimeOfDay     string          `json:"time_of_day,omitempty"`
}

// Request identifies who is acting, what they are doing, and the current game-state tag
type Request struct {
	CharacterID string `json:"character_id"`
	Params      Params `json:"params"`
	GameState   string `json:"game_state,omitempty"`
}

// Validator checks whether an intended action is permitted.
// Validate always returns a Result; it never panics or returns an error.
type Validator interface {
	Validate(ctx context.Context, req Request) Result
}

// ValidatorFunc adapts a function to the Validator interface
type ValidatorFunc func(ctx context.Context, req Request) Result

func (f ValidatorFunc) Validate(ctx context.Context, req Request) Result {
	return f(ctx, req)
}

// base resolves the character and converts faults into results
type base struct {
	gateway character.Gateway
	logger  *slog.Logger
}

func newBase(gateway character.Gateway, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{gateway: gateway, logger: logger}
}

// withCharacter loads the character and runs check against it. Gateway
// errors and panics become InternalError results.
func (b base) withCharacter(ctx context.Context, action string, req Request, check func(c *character.Character) Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Validator panicked", "action", action, "character_id", req.CharacterID, "panic", r)
			res = InternalError(action, fmt.Errorf("%v", r))
		}
	}()

	if b.gateway == nil {
		return InternalError(action, errors.New("no character gateway configured"))
	}

	c, err := b.gateway.GetCharacter(ctx, req.CharacterID)
	if err != nil {
		if errors.Is(err, character.ErrNotFound) {
			return NotFound("Character not found")
		}
		b.logger.Error("Failed to load character", "action", action, "character_id", req.CharacterID, "error", err)
		return InternalError(action, err)
	}
	if c == nil {
		return NotFound("Character not found")
	}

	return check(c)
}
