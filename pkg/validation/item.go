package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/story-arbiter/pkg/character"
)

// ItemValidator validates item use and inventory management
type ItemValidator struct {
	base
}

// Ensure ItemValidator implements Validator interface
var _ Validator = (*ItemValidator)(nil)

func NewItemValidator(gateway character.Gateway, logger *slog.Logger) *ItemValidator {
	return &ItemValidator{base: newBase(gateway, logger)}
}

// Validate routes use_item to ValidateItemUse and everything else to ValidateItemAction
func (v *ItemValidator) Validate(ctx context.Context, req Request) Result {
	action := strings.ToLower(strings.TrimSpace(req.Params.Action))
	if action == "" || action == ActionUseItem {
		return v.ValidateItemUse(ctx, req)
	}
	return v.ValidateItemAction(ctx, req)
}

// ValidateItemUse checks the item is carried, has charges if it uses them,
// and has quantity left.
func (v *ItemValidator) ValidateItemUse(ctx context.Context, req Request) Result {
	return v.withCharacter(ctx, "item use", req, func(c *character.Character) Result {
		name := strings.TrimSpace(req.Params.Item)
		if name == "" {
			return Fail("No item specified", nil)
		}

		item, ok := c.FindInventoryItem(name)
		if !ok {
			return Fail(fmt.Sprintf("You don't have %s in your inventory", name), nil)
		}

		details := map[string]any{
			"item":     item.Name,
			"quantity": item.Quantity,
		}
		if item.Type != "" {
			details["type"] = item.Type
		}
		if item.MaxCharges > 0 {
			details["charges"] = item.Charges
			details["max_charges"] = item.MaxCharges
			if item.Charges <= 0 {
				return Fail(fmt.Sprintf("%s has no charges remaining", item.Name), details)
			}
		}
		if item.Quantity <= 0 {
			return Fail(fmt.Sprintf("You have no %s left", item.Name), details)
		}
		return Pass(details)
	})
}

// ValidateItemAction checks take, drop, equip, unequip, and inventory requests
func (v *ItemValidator) ValidateItemAction(ctx context.Context, req Request) Result {
	return v.withCharacter(ctx, "item action", req, func(c *character.Character) Result {
		action := strings.ToLower(strings.TrimSpace(req.Params.Action))
		name := strings.TrimSpace(req.Params.Item)

		switch action {
		case ItemActionInventory:
			return Pass(inventoryDetails(c))
		case ItemActionTake, ItemActionDrop, ItemActionEquip, ItemActionUnequip:
		default:
			return Fail(fmt.Sprintf("Unknown item action: %s", req.Params.Action), nil)
		}

		if name == "" {
			return Fail("No item specified", nil)
		}
		details := map[string]any{"action": action, "item": name}

		switch action {
		case ItemActionTake:
			// Anything may be picked up; presence in the world is not tracked here
			if existing, ok := c.FindInventoryItem(name); ok {
				details["item"] = existing.Name
				details["stacks_with"] = existing.Name
			}
			return Pass(details)

		case ItemActionDrop:
			if item, ok := c.FindInventoryItem(name); ok {
				details["item"] = item.Name
				details["from"] = "inventory"
				return Pass(details)
			}
			if slot, item, ok := c.FindEquippedItem(name); ok {
				details["item"] = item.Name
				details["from"] = slot
				return Pass(details)
			}
			return Fail(fmt.Sprintf("You don't have %s", name), nil)

		case ItemActionEquip:
			item, ok := c.FindInventoryItem(name)
			if !ok {
				return Fail(fmt.Sprintf("You don't have %s in your inventory", name), nil)
			}
			slot, ok := character.SlotFor(item)
			if !ok {
				return Fail(fmt.Sprintf("%s cannot be equipped", item.Name), nil)
			}
			details["item"] = item.Name
			details["slot"] = slot
			if current, occupied := c.Equipment.Slots[slot]; occupied && current.Name != "" {
				details["replaces"] = current.Name
			}
			return Pass(details)

		default: // unequip
			if item, ok := c.FindInventoryItem(name); ok {
				details["item"] = item.Name
				details["from"] = "inventory"
				return Pass(details)
			}
			if slot, item, ok := c.FindEquippedItem(name); ok {
				details["item"] = item.Name
				details["slot"] = slot
				return Pass(details)
			}
			return Fail(fmt.Sprintf("%s is not equipped", name), nil)
		}
	})
}

func inventoryDetails(c *character.Character) map[string]any {
	items := make([]string, 0, len(c.Equipment.Inventory))
	for _, item := range c.Equipment.Inventory {
		items = append(items, item.Name)
	}
	weapons := make([]string, 0, len(c.Equipment.Weapons))
	for _, w := range c.Equipment.Weapons {
		weapons = append(weapons, w.Name)
	}
	equipped := make(map[string]string, len(c.Equipment.Slots))
	for _, slot := range c.Equipment.SlotNames() {
		equipped[slot] = c.Equipment.Slots[slot].Name
	}
	details := map[string]any{
		"inventory": items,
		"weapons":   weapons,
		"equipped":  equipped,
	}
	if len(c.Equipment.Armor) > 0 {
		armor := make([]string, 0, len(c.Equipment.Armor))
		for _, a := range c.Equipment.Armor {
			armor = append(armor, a.Name)
		}
		details["armor"] = armor
	}
	return details
}
