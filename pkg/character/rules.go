package character

import "github.com/jwebster45206/story-arbiter/pkg/textfilter"

// Reserved equipment containers. Every other equipment key is a slot.
const (
	EquipmentKeyWeapons   = "weapons"
	EquipmentKeyArmor     = "armor"
	EquipmentKeyInventory = "inventory"
)

const (
	DefaultAbilityScore = 10
	MinAbilityScore     = 1
	MaxAbilityScore     = 30
)

// spellcastingClasses can cast spells at all
var spellcastingClasses = map[string]bool{
	"artificer": true,
	"bard":      true,
	"cleric":    true,
	"druid":     true,
	"paladin":   true,
	"ranger":    true,
	"sorcerer":  true,
	"warlock":   true,
	"wizard":    true,
}

// ritualCastingClasses can cast any ritual-tagged spell they know as a ritual
var ritualCastingClasses = map[string]bool{
	"artificer": true,
	"bard":      true,
	"cleric":    true,
	"druid":     true,
	"wizard":    true,
}

// A warlock can ritual cast only with this invocation.
const (
	RitualInvocationClass = "warlock"
	RitualInvocation      = "Book of Ancient Secrets"
)

// hitDieByClass is the hit die size for each class
var hitDieByClass = map[string]int{
	"barbarian": 12,
	"fighter":   10,
	"paladin":   10,
	"ranger":    10,
	"artificer": 8,
	"bard":      8,
	"cleric":    8,
	"druid":     8,
	"monk":      8,
	"rogue":     8,
	"warlock":   8,
	"sorcerer":  6,
	"wizard":    6,
}

// accessorySlots are item types that occupy a slot named after the type
var accessorySlots = []string{
	"amulet",
	"belt",
	"boots",
	"bracers",
	"cloak",
	"gloves",
	"helmet",
	"necklace",
	"ring",
}

// AmmunitionKeywords identify ammunition by item name
var AmmunitionKeywords = []string{"arrow", "bolt", "bullet"}

// Well-known item slots
const (
	SlotWeapon = "weapon"
	SlotArmor  = "armor"
	SlotShield = "shield"
)

// IsSpellcaster reports whether class can cast spells
func IsSpellcaster(class string) bool {
	return spellcastingClasses[textfilter.Fold(class)]
}

// IsRitualCaster reports whether class can inherently cast rituals
func IsRitualCaster(class string) bool {
	return ritualCastingClasses[textfilter.Fold(class)]
}

// HitDie returns the hit die size for class, or 0 if the class is unknown
func HitDie(class string) int {
	return hitDieByClass[textfilter.Fold(class)]
}

// SlotFor resolves the equipment slot an item occupies when equipped
func SlotFor(item Item) (string, bool) {
	itemType := textfilter.Fold(item.Type)
	switch itemType {
	case "":
		return "", false
	case "weapon":
		return SlotWeapon, true
	case "armor":
		if textfilter.EqualFold(item.Subtype, SlotShield) {
			return SlotShield, true
		}
		return SlotArmor, true
	}
	for _, slot := range accessorySlots {
		if itemType == slot {
			return slot, true
		}
	}
	return "", false
}

// IsAmmunition reports whether an item name looks like ammunition
func IsAmmunition(name string) bool {
	for _, kw := range AmmunitionKeywords {
		if textfilter.ContainsFold(name, kw) {
			return true
		}
	}
	return false
}
