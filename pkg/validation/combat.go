package validation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jwebster45206/story-arbiter/pkg/character"
	"github.com/jwebster45206/story-arbiter/pkg/textfilter"
)

// GameStateCombat is the game-state tag for an active fight
const GameStateCombat = "combat"

// CombatValidator validates weapon attacks and spell casts.
//
// Concentration is not tracked: casting a concentration spell while already
// concentrating is not rejected. The spell's concentration flag is reported in
// the result details for downstream resolution.
type CombatValidator struct {
	base
}

// Ensure CombatValidator implements Validator interface
var _ Validator = (*CombatValidator)(nil)

func NewCombatValidator(gateway character.Gateway, logger *slog.Logger) *CombatValidator {
	return &CombatValidator{base: newBase(gateway, logger)}
}

// Validate dispatches to spell-cast validation when a spell is named or the
// action is cast_spell, and to weapon-attack validation otherwise.
func (v *CombatValidator) Validate(ctx context.Context, req Request) Result {
	if req.Params.Action == ActionCastSpell || strings.TrimSpace(req.Params.Spell) != "" {
		return v.ValidateSpellCast(ctx, req)
	}
	return v.ValidateWeaponAttack(ctx, req)
}

// ValidateSpellCast checks class, known spells, slots, and ritual eligibility
func (v *CombatValidator) ValidateSpellCast(ctx context.Context, req Request) Result {
	return v.withCharacter(ctx, "spell cast", req, func(c *character.Character) Result {
		if !character.IsSpellcaster(c.Class) {
			return Fail(fmt.Sprintf("Your %s cannot cast spells", classLabel(c)), nil)
		}

		name := strings.TrimSpace(req.Params.Spell)
		if name == "" {
			return Fail("No spell specified", nil)
		}

		spell, ok := c.FindSpell(name)
		if !ok {
			return Fail(fmt.Sprintf("You don't know the spell %s", name), nil)
		}

		details := map[string]any{
			"spell":         spell.Name,
			"level":         spell.Level,
			"concentration": spell.Concentration,
		}

		if req.Params.Ritual {
			return validateRitual(c, spell, details)
		}

		details["ritual"] = false
		if spell.Level == 0 {
			details["cantrip"] = true
			details["slot_required"] = false
			return Pass(details)
		}

		available := c.AvailableSlotsAtOrAbove(spell.Level)
		if available <= 0 {
			return Fail(fmt.Sprintf("No spell slots available for level %d or higher", spell.Level), details)
		}

		details["slot_required"] = true
		details["slot_level"] = lowestAvailableSlot(c, spell.Level)
		details["available_slots"] = available
		return Pass(details)
	})
}

func validateRitual(c *character.Character, spell character.Spell, details map[string]any) Result {
	details["ritual"] = true
	if !spell.Ritual {
		return Fail(fmt.Sprintf("%s cannot be cast as a ritual", spell.Name), details)
	}

	if !character.IsRitualCaster(c.Class) {
		if !textfilter.EqualFold(c.Class, character.RitualInvocationClass) {
			return Fail(fmt.Sprintf("Your %s cannot cast spells as rituals", classLabel(c)), details)
		}
		if !c.HasInvocation(character.RitualInvocation) {
			return Fail(fmt.Sprintf("Your %s cannot cast rituals without the %s invocation",
				classLabel(c), character.RitualInvocation), details)
		}
		details["granted_by"] = character.RitualInvocation
	}

	// Rituals never consume a slot
	details["slot_required"] = false
	return Pass(details)
}

// lowestAvailableSlot returns the lowest slot level >= level with an available slot
func lowestAvailableSlot(c *character.Character, level int) int {
	levels := make([]int, 0, len(c.Spellcasting.Slots))
	for l, pool := range c.Spellcasting.Slots {
		if l >= level && pool.Available > 0 {
			levels = append(levels, l)
		}
	}
	sort.Ints(levels)
	if len(levels) == 0 {
		return 0
	}
	return levels[0]
}

// ValidateWeaponAttack checks the weapon is equipped and ranged weapons have ammunition.
// Attacking outside of combat is allowed and reported as a notice.
func (v *CombatValidator) ValidateWeaponAttack(ctx context.Context, req Request) Result {
	return v.withCharacter(ctx, "weapon attack", req, func(c *character.Character) Result {
		name := strings.TrimSpace(req.Params.Weapon)
		weapon, ok := c.FindWeapon(name)
		if !ok {
			if name == "" {
				return Fail("You have no weapon equipped", nil)
			}
			return Fail(fmt.Sprintf("You don't have %s equipped", name), nil)
		}

		ability := attackAbility(c, weapon)
		modifier, _ := c.AbilityModifier(ability)
		details := map[string]any{
			"weapon":          weapon.Name,
			"type":            weapon.Type,
			"attack_ability":  ability,
			"attack_modifier": modifier,
			"proficient":      weaponProficient(c, weapon),
		}
		if weapon.Damage != "" {
			details["damage"] = weapon.Damage
		}
		if req.Params.Target != "" {
			details["target"] = req.Params.Target
		}

		if textfilter.ContainsFold(weapon.Type, "ranged") {
			ammo, found := firstStockedAmmunition(c)
			if !found {
				return Fail(fmt.Sprintf("You have no ammunition for your %s", weapon.Name), details)
			}
			details["ammunition"] = ammo.Name
			details["ammunition_remaining"] = ammo.Quantity
		}

		if !textfilter.EqualFold(req.GameState, GameStateCombat) {
			details["notice"] = "You are not currently in combat"
		}
		return Pass(details)
	})
}

// attackAbility picks dexterity for ranged weapons and the better of
// strength and dexterity for finesse weapons.
func attackAbility(c *character.Character, w character.Weapon) string {
	if textfilter.ContainsFold(w.Type, "ranged") {
		return "dexterity"
	}
	for _, p := range w.Properties {
		if textfilter.EqualFold(p, "finesse") && c.Abilities.Dexterity > c.Abilities.Strength {
			return "dexterity"
		}
	}
	return "strength"
}

// weaponProficient accepts a proficiency in the weapon itself or its category,
// such as "martial weapons".
func weaponProficient(c *character.Character, w character.Weapon) bool {
	if c.HasProficiency(w.Name) {
		return true
	}
	category, _, _ := strings.Cut(strings.TrimSpace(w.Type), " ")
	return category != "" && c.HasProficiency(category+" weapons")
}

func firstStockedAmmunition(c *character.Character) (character.Item, bool) {
	for _, item := range c.Ammunition() {
		if item.Quantity > 0 {
			return item, true
		}
	}
	return character.Item{}, false
}

// classLabel is the lowercase class name used in player-facing reasons
func classLabel(c *character.Character) string {
	class := strings.ToLower(strings.TrimSpace(c.Class))
	if class == "" {
		return "character"
	}
	return class
}
