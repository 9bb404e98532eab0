package character

import "github.com/jwebster45206/story-arbiter/pkg/textfilter"

// HasProficiency reports whether the character is proficient in skill
func (c *Character) HasProficiency(skill string) bool {
	for _, p := range c.Proficiencies {
		if textfilter.EqualFold(p, skill) {
			return true
		}
	}
	return false
}

// FindWeapon looks up an equipped weapon by name.
// An empty name selects the first equipped weapon.
func (c *Character) FindWeapon(name string) (Weapon, bool) {
	if textfilter.Fold(name) == "" {
		if len(c.Equipment.Weapons) == 0 {
			return Weapon{}, false
		}
		return c.Equipment.Weapons[0], true
	}
	for _, w := range c.Equipment.Weapons {
		if textfilter.EqualFold(w.Name, name) {
			return w, true
		}
	}
	return Weapon{}, false
}

// FindInventoryItem looks up an inventory item by name
func (c *Character) FindInventoryItem(name string) (Item, bool) {
	for _, item := range c.Equipment.Inventory {
		if textfilter.EqualFold(item.Name, name) {
			return item, true
		}
	}
	return Item{}, false
}

// FindEquippedItem looks up an item held in a named equipment slot
func (c *Character) FindEquippedItem(name string) (string, Item, bool) {
	for _, slot := range c.Equipment.SlotNames() {
		item := c.Equipment.Slots[slot]
		if textfilter.EqualFold(item.Name, name) {
			return slot, item, true
		}
	}
	return "", Item{}, false
}

// Ammunition returns inventory items that look like ammunition
func (c *Character) Ammunition() []Item {
	var ammo []Item
	for _, item := range c.Equipment.Inventory {
		if IsAmmunition(item.Name) {
			ammo = append(ammo, item)
		}
	}
	return ammo
}

// FindFeature searches class, racial, then background features. The first match wins.
func (c *Character) FindFeature(name string) (Feature, FeatureCategory, bool) {
	groups := []struct {
		category FeatureCategory
		features []Feature
	}{
		{FeatureCategoryClass, c.Features.Class},
		{FeatureCategoryRacial, c.Features.Racial},
		{FeatureCategoryBackground, c.Features.Background},
	}
	for _, g := range groups {
		for _, f := range g.features {
			if textfilter.EqualFold(f.Name, name) {
				return f, g.category, true
			}
		}
	}
	return Feature{}, "", false
}

// FindSpell looks up a known spell by name
func (c *Character) FindSpell(name string) (Spell, bool) {
	if c.Spellcasting == nil {
		return Spell{}, false
	}
	for _, s := range c.Spellcasting.Spells {
		if textfilter.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Spell{}, false
}

// AvailableSlotsAtOrAbove sums available slots at level and every higher level.
// Higher-level slots can always be spent on lower-level spells.
func (c *Character) AvailableSlotsAtOrAbove(level int) int {
	if c.Spellcasting == nil {
		return 0
	}
	total := 0
	for slotLevel, pool := range c.Spellcasting.Slots {
		if slotLevel >= level {
			total += pool.Available
		}
	}
	return total
}

// HasInvocation reports whether the character has a named invocation, either
// in its spellcasting invocations or among its class features.
func (c *Character) HasInvocation(name string) bool {
	if c.Spellcasting != nil {
		for _, inv := range c.Spellcasting.Invocations {
			if textfilter.EqualFold(inv, name) {
				return true
			}
		}
	}
	for _, f := range c.Features.Class {
		if textfilter.EqualFold(f.Name, name) || textfilter.EqualFold(f.Name, "Eldritch Invocation: "+name) {
			return true
		}
	}
	return false
}
