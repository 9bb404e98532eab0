package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/story-arbiter/pkg/character"
)

// ActionValidator validates non-combat actions. Feature use is checked here;
// item and rest actions are delegated.
type ActionValidator struct {
	base
	items *ItemValidator
	rest  *RestValidator
}

// Ensure ActionValidator implements Validator interface
var _ Validator = (*ActionValidator)(nil)

func NewActionValidator(gateway character.Gateway, logger *slog.Logger) *ActionValidator {
	return &ActionValidator{
		base:  newBase(gateway, logger),
		items: NewItemValidator(gateway, logger),
		rest:  NewRestValidator(gateway, logger),
	}
}

// Validate dispatches on Params.Action
func (v *ActionValidator) Validate(ctx context.Context, req Request) Result {
	switch strings.ToLower(strings.TrimSpace(req.Params.Action)) {
	case ActionRest:
		return v.rest.Validate(ctx, req)
	case ActionUseItem:
		return v.items.ValidateItemUse(ctx, req)
	case ItemActionTake, ItemActionDrop, ItemActionEquip, ItemActionUnequip, ItemActionInventory:
		return v.items.ValidateItemAction(ctx, req)
	case ActionUseFeature:
		return v.ValidateFeatureUse(ctx, req)
	}

	// No explicit action: infer from whichever parameter is present
	switch {
	case req.Params.RestType != "":
		return v.rest.Validate(ctx, req)
	case req.Params.Item != "":
		return v.items.ValidateItemUse(ctx, req)
	default:
		return v.ValidateFeatureUse(ctx, req)
	}
}

// ValidateFeatureUse checks the character has the feature and uses remaining
func (v *ActionValidator) ValidateFeatureUse(ctx context.Context, req Request) Result {
	return v.withCharacter(ctx, "feature use", req, func(c *character.Character) Result {
		name := strings.TrimSpace(req.Params.Feature)
		if name == "" {
			return Fail("No feature specified", nil)
		}

		feature, category, ok := c.FindFeature(name)
		if !ok {
			return Fail(fmt.Sprintf("You don't have the feature %s", name), nil)
		}

		details := map[string]any{
			"feature":  feature.Name,
			"category": string(category),
		}
		if feature.Recharge != "" {
			details["recharge"] = feature.Recharge
		}

		// Features without a use limit are always available
		if feature.MaxUses <= 0 {
			details["limited"] = false
			return Pass(details)
		}

		details["limited"] = true
		details["max_uses"] = feature.MaxUses
		details["uses_remaining"] = feature.CurrentUses
		if feature.CurrentUses <= 0 {
			return Fail(fmt.Sprintf("No uses of %s remaining", feature.Name), details)
		}
		return Pass(details)
	})
}
