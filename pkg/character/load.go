package character

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/jwebster45206/d20"
)

// Parse decodes a JSON character sheet, applies defaults and validates it.
// This is the load boundary: validators never apply defaults themselves.
// Sheets with hit points must also build a d20 actor, which rejects current
// hit points above the maximum.
func Parse(data []byte) (*Character, error) {
	var c Character
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal character: %w", err)
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.HitPoints.Max > 0 {
		if _, err := c.Actor(); err != nil {
			return nil, fmt.Errorf("character %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

// Normalize applies zero-value defaults. Missing ability scores become 10.
func (c *Character) Normalize() {
	for _, score := range []*int{
		&c.Abilities.Strength,
		&c.Abilities.Dexterity,
		&c.Abilities.Constitution,
		&c.Abilities.Intelligence,
		&c.Abilities.Wisdom,
		&c.Abilities.Charisma,
	} {
		if *score == 0 {
			*score = DefaultAbilityScore
		}
	}
	if c.Equipment.Slots == nil {
		c.Equipment.Slots = make(map[string]Item)
	}
	if c.Level == 0 {
		c.Level = 1
	}
}

// Validate checks sheet invariants: ability scores in range and no negative counters
func (c *Character) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("character id is required")
	}

	for name, score := range c.Abilities.ToAttributes() {
		if score < MinAbilityScore || score > MaxAbilityScore {
			return fmt.Errorf("ability %s must be between %d and %d, got %d", name, MinAbilityScore, MaxAbilityScore, score)
		}
	}

	if c.HitPoints.Current < 0 || c.HitPoints.Max < 0 || c.HitPoints.Temporary < 0 {
		return fmt.Errorf("hit points cannot be negative")
	}
	if c.HitPoints.Max == 0 && c.HitPoints.Current > 0 {
		return fmt.Errorf("hit points current %d without a maximum", c.HitPoints.Current)
	}

	checkItem := func(where string, item Item) error {
		if item.Quantity < 0 {
			return fmt.Errorf("%s %q has negative quantity", where, item.Name)
		}
		if item.Charges < 0 || item.MaxCharges < 0 {
			return fmt.Errorf("%s %q has negative charges", where, item.Name)
		}
		return nil
	}
	for _, item := range c.Equipment.Inventory {
		if err := checkItem("inventory item", item); err != nil {
			return err
		}
	}
	for slot, item := range c.Equipment.Slots {
		if err := checkItem("slot "+slot+" item", item); err != nil {
			return err
		}
	}

	for _, group := range [][]Feature{c.Features.Class, c.Features.Racial, c.Features.Background} {
		for _, f := range group {
			if f.MaxUses < 0 || f.CurrentUses < 0 {
				return fmt.Errorf("feature %q has negative uses", f.Name)
			}
		}
	}

	if c.Spellcasting != nil {
		for level, pool := range c.Spellcasting.Slots {
			if level < 1 || level > 9 {
				return fmt.Errorf("spell slot level must be between 1 and 9, got %d", level)
			}
			if pool.Available < 0 || pool.Max < 0 {
				return fmt.Errorf("level %d spell slots cannot be negative", level)
			}
		}
		for _, spell := range c.Spellcasting.Spells {
			if spell.Level < 0 || spell.Level > 9 {
				return fmt.Errorf("spell %q has invalid level %d", spell.Name, spell.Level)
			}
		}
	}

	return nil
}

// Actor builds a d20.Actor for the character. It fails for sheets without
// maximum hit points.
func (c *Character) Actor() (*d20.Actor, error) {
	attrs := c.Abilities.ToAttributes()
	maps.Copy(attrs, c.proficiencyAttributes())

	ac := c.ArmorClass
	if ac == 0 {
		ac = 10 + Modifier(c.Abilities.Dexterity)
	}

	actor, err := d20.NewActor(c.ID).
		WithHP(c.HitPoints.Max).
		WithAC(ac).
		WithAttributes(attrs).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}

	// Current HP of 0 is a downed character, not a missing value
	if c.HitPoints.Current != c.HitPoints.Max {
		if err := actor.SetHP(c.HitPoints.Current); err != nil {
			return nil, fmt.Errorf("failed to set HP: %w", err)
		}
	}
	return actor, nil
}

// proficiencyAttributes exposes proficiencies as 1-valued actor attributes
func (c *Character) proficiencyAttributes() map[string]int {
	out := make(map[string]int, len(c.Proficiencies))
	for _, p := range c.Proficiencies {
		out["proficiency:"+p] = 1
	}
	return out
}
