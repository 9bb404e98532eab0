package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

var errEmptyInput = errors.New("nothing to send")

// parseInput splits player input into free text and structured parameters.
// Parameters are written as "@key=value" and run until the next " @":
//
//	I drink it @action=use_item @item=Potion of Healing
func parseInput(input string) (string, validation.Params, error) {
	var params validation.Params
	parts := strings.Split(" "+strings.TrimSpace(input), " @")
	message := strings.TrimSpace(parts[0])

	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return "", params, fmt.Errorf("parameter @%s needs a value", strings.TrimSpace(part))
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "action":
			params.Action = value
		case "weapon":
			params.Weapon = value
		case "target":
			params.Target = value
		case "spell":
			params.Spell = value
		case "ritual":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return "", params, errors.New("@ritual must be true or false")
			}
			params.Ritual = b
		case "feature":
			params.Feature = value
		case "item":
			params.Item = value
		case "rest", "rest_type":
			params.RestType = value
		case "location":
			params.Location = value
		case "time", "time_of_day":
			params.TimeOfDay = value
		case "flag":
			if params.LocationFlags == nil {
				params.LocationFlags = make(map[string]bool)
			}
			params.LocationFlags[value] = true
		default:
			return "", params, fmt.Errorf("unknown parameter @%s", key)
		}
	}

	if message == "" {
		message = strings.ReplaceAll(params.Action, "_", " ")
	}
	if message == "" {
		return "", params, errEmptyInput
	}
	return message, params, nil
}
