package character

import (
	"encoding/json"
	"fmt"
	"sort"
)

// AbilityScores represents the six core D&D 5e ability scores
type AbilityScores struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`
}

// ToAttributes converts the scores to a map keyed by lowercase ability name
func (a *AbilityScores) ToAttributes() map[string]int {
	return map[string]int{
		"strength":     a.Strength,
		"dexterity":    a.Dexterity,
		"constitution": a.Constitution,
		"intelligence": a.Intelligence,
		"wisdom":       a.Wisdom,
		"charisma":     a.Charisma,
	}
}

// Score returns the named ability score
func (a *AbilityScores) Score(ability string) (int, bool) {
	v, ok := a.ToAttributes()[ability]
	return v, ok
}

// Modifier returns the ability modifier for a score: floor((score - 10) / 2).
// Go integer division truncates toward zero, so odd scores below 10 are
// rounded down explicitly.
func Modifier(score int) int {
	d := score - 10
	if d < 0 {
		return -((-d + 1) / 2)
	}
	return d / 2
}

// Weapon is an equipped weapon. Type is free-form, e.g. "martial ranged".
type Weapon struct {
	Name       string   `json:"name"`
	Type       string   `json:"type,omitempty"`
	Damage     string   `json:"damage,omitempty"`
	Properties []string `json:"properties,omitempty"`
}

// Armor is worn armor or a shield.
type Armor struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"` // light, medium, heavy, shield
	BaseAC  int    `json:"base_ac,omitempty"`
	Stealth string `json:"stealth,omitempty"`
}

// Item is an inventory or slotted item.
// Quantity defaults to 1 and Charges to MaxCharges when absent from the source record.
type Item struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`    // weapon, armor, ring, potion, ...
	Subtype     string `json:"subtype,omitempty"` // e.g. "shield" for armor
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
	Charges     int    `json:"charges"`
	MaxCharges  int    `json:"max_charges,omitempty"`
}

func (i *Item) UnmarshalJSON(data []byte) error {
	// Bare strings are shorthand for a single untyped item
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*i = Item{Name: name, Quantity: 1}
		return nil
	}

	type alias Item
	aux := struct {
		*alias
		Quantity *int `json:"quantity"`
		Charges  *int `json:"charges"`
	}{alias: (*alias)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	i.Quantity = 1
	if aux.Quantity != nil {
		i.Quantity = *aux.Quantity
	}
	i.Charges = i.MaxCharges
	if aux.Charges != nil {
		i.Charges = *aux.Charges
	}
	return nil
}

// Equipment holds weapons, armor, inventory, and any named equipment slots.
// In the serialized form, every key except "weapons", "armor", and "inventory"
// is an equipment slot holding a single item.
type Equipment struct {
	Weapons   []Weapon
	Armor     []Armor
	Inventory []Item
	Slots     map[string]Item
}

func (e *Equipment) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal equipment: %w", err)
	}

	*e = Equipment{Slots: make(map[string]Item)}
	for key, value := range raw {
		switch key {
		case EquipmentKeyWeapons:
			if err := json.Unmarshal(value, &e.Weapons); err != nil {
				return fmt.Errorf("failed to unmarshal weapons: %w", err)
			}
		case EquipmentKeyArmor:
			if err := json.Unmarshal(value, &e.Armor); err != nil {
				return fmt.Errorf("failed to unmarshal armor: %w", err)
			}
		case EquipmentKeyInventory:
			if err := json.Unmarshal(value, &e.Inventory); err != nil {
				return fmt.Errorf("failed to unmarshal inventory: %w", err)
			}
		default:
			if string(value) == "null" {
				continue
			}
			var item Item
			if err := json.Unmarshal(value, &item); err != nil {
				return fmt.Errorf("failed to unmarshal equipment slot %q: %w", key, err)
			}
			e.Slots[key] = item
		}
	}
	return nil
}

func (e Equipment) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Slots)+3)
	for slot, item := range e.Slots {
		out[slot] = item
	}
	if len(e.Weapons) > 0 {
		out[EquipmentKeyWeapons] = e.Weapons
	}
	if len(e.Armor) > 0 {
		out[EquipmentKeyArmor] = e.Armor
	}
	if len(e.Inventory) > 0 {
		out[EquipmentKeyInventory] = e.Inventory
	}
	return json.Marshal(out)
}

// SlotNames returns the occupied equipment slots in sorted order
func (e *Equipment) SlotNames() []string {
	names := make([]string, 0, len(e.Slots))
	for name := range e.Slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Feature is a class, racial, or background feature.
// MaxUses of 0 means the feature is unlimited.
type Feature struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MaxUses     int    `json:"max_uses,omitempty"`
	CurrentUses int    `json:"current_uses"`
	Recharge    string `json:"recharge,omitempty"` // short_rest, long_rest, dawn
}

func (f *Feature) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*f = Feature{Name: name}
		return nil
	}

	type alias Feature
	aux := struct {
		*alias
		CurrentUses *int `json:"current_uses"`
	}{alias: (*alias)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	f.CurrentUses = f.MaxUses
	if aux.CurrentUses != nil {
		f.CurrentUses = *aux.CurrentUses
	}
	return nil
}

// FeatureCategory names where a feature comes from
type FeatureCategory string

const (
	FeatureCategoryClass      FeatureCategory = "class"
	FeatureCategoryRacial     FeatureCategory = "racial"
	FeatureCategoryBackground FeatureCategory = "background"
)

// Features groups features by origin
type Features struct {
	Class      []Feature `json:"class,omitempty"`
	Racial     []Feature `json:"racial,omitempty"`
	Background []Feature `json:"background,omitempty"`
}

// Spell is a known or prepared spell. Level 0 is a cantrip.
type Spell struct {
	Name          string `json:"name"`
	Level         int    `json:"level"`
	Ritual        bool   `json:"ritual,omitempty"`
	School        string `json:"school,omitempty"`
	Concentration bool   `json:"concentration,omitempty"`
}

// SlotPool is the spell slot pool for one spell level.
// Available defaults to Max when absent from the source record.
type SlotPool struct {
	Available int `json:"available"`
	Max       int `json:"max"`
}

func (s *SlotPool) UnmarshalJSON(data []byte) error {
	type alias SlotPool
	aux := struct {
		*alias
		Available *int `json:"available"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	s.Available = s.Max
	if aux.Available != nil {
		s.Available = *aux.Available
	}
	return nil
}

// Spellcasting holds known spells, slots keyed by spell level, and any
// invocations that change casting rules.
type Spellcasting struct {
	Ability     string           `json:"ability,omitempty"`
	Spells      []Spell          `json:"spells,omitempty"`
	Slots       map[int]SlotPool `json:"slots,omitempty"`
	Invocations []string         `json:"invocations,omitempty"`
}

// HitPoints tracks current, maximum, and temporary hit points.
// Current defaults to Max when absent from the source record.
type HitPoints struct {
	Current   int `json:"current"`
	Max       int `json:"max"`
	Temporary int `json:"temporary,omitempty"`
}

func (hp *HitPoints) UnmarshalJSON(data []byte) error {
	type alias HitPoints
	aux := struct {
		*alias
		Current *int `json:"current"`
	}{alias: (*alias)(hp)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	hp.Current = hp.Max
	if aux.Current != nil {
		hp.Current = *aux.Current
	}
	return nil
}

// Character is the read-only character sheet snapshot used for validation
type Character struct {
	ID            string        `json:"id"`
	Name          string        `json:"name,omitempty"`
	Class         string        `json:"class,omitempty"`
	Subclass      string        `json:"subclass,omitempty"`
	Level         int           `json:"level,omitempty"`
	Race          string        `json:"race,omitempty"`
	Background    string        `json:"background,omitempty"`
	Pronouns      string        `json:"pronouns,omitempty"`
	Abilities     AbilityScores `json:"abilities"`
	Proficiencies []string      `json:"proficiencies,omitempty"`
	ArmorClass    int           `json:"armor_class,omitempty"`
	Equipment     Equipment     `json:"equipment"`
	Features      Features      `json:"features"`
	Spellcasting  *Spellcasting `json:"spellcasting,omitempty"`
	HitPoints     HitPoints     `json:"hit_points"`
}

// AbilityModifier returns the modifier for the named ability
func (c *Character) AbilityModifier(ability string) (int, bool) {
	score, ok := c.Abilities.Score(ability)
	if !ok {
		return 0, false
	}
	return Modifier(score), true
}
