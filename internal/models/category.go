package models

import "strings"

// Action is a generic device action accepted by the control endpoint.
type Action string

const (
	ActionTurnOn        Action = "turn_on"
	ActionTurnOff       Action = "turn_off"
	ActionSetPercentage Action = "set_percentage"
	ActionMediaPlay     Action = "media_play"
	ActionMediaPause    Action = "media_pause"
)

// AllowedActions is the closed set of actions the proxy will ever forward.
var AllowedActions = map[Action]bool{
	ActionTurnOn:        true,
	ActionTurnOff:       true,
	ActionSetPercentage: true,
	ActionMediaPlay:     true,
	ActionMediaPause:    true,
}

// Valid reports whether the action is a member of the allowed set.
func (a Action) Valid() bool {
	return AllowedActions[a]
}

// Label returns the humanized form of the action for activity display.
func (a Action) Label() string {
	switch a {
	case ActionTurnOn:
		return "turned on"
	case ActionTurnOff:
		return "turned off"
	case ActionSetPercentage:
		return "set speed"
	case ActionMediaPlay:
		return "played"
	case ActionMediaPause:
		return "paused"
	default:
		return string(a)
	}
}

// Category is the closed set of entity categories the proxy knows how to
// shape parameters for. It doubles as the downstream RPC family name.
type Category string

const (
	CategoryLight       Category = "light"
	CategoryFan         Category = "fan"
	CategoryMediaPlayer Category = "media_player"
	CategorySwitch      Category = "switch"
	CategoryUnknown     Category = ""
)

// ParseCategory derives the category from the namespace prefix of an
// entity identifier ("light.lamp" -> light). Identifiers with no separator
// or an unrecognised prefix map to CategoryUnknown.
func ParseCategory(entityID string) Category {
	prefix, _, ok := strings.Cut(entityID, ".")
	if !ok {
		return CategoryUnknown
	}
	switch Category(prefix) {
	case CategoryLight, CategoryFan, CategoryMediaPlayer, CategorySwitch:
		return Category(prefix)
	default:
		return CategoryUnknown
	}
}

// Param identifies an optional control parameter.
type Param string

const (
	ParamRGBColor   Param = "rgb_color"
	ParamBrightness Param = "brightness"
	ParamPercentage Param = "percentage"
)

// categoryParams maps (category, action) to the parameters that may be
// forwarded downstream. Anything not listed is dropped, never forwarded.
var categoryParams = map[Category]map[Action][]Param{
	CategoryLight: {
		ActionTurnOn: {ParamRGBColor, ParamBrightness},
	},
	CategoryFan: {
		ActionSetPercentage: {ParamPercentage},
	},
}

// AllowedParams returns the parameter set forwarded for a category/action
// pair. Most pairs take no parameters.
func AllowedParams(c Category, a Action) []Param {
	return categoryParams[c][a]
}
