package model

import "strings"

// OilType identifies a fungible commodity grade. The empty string means a
// tank or pipeline currently holds nothing.
type OilType string

const OilUnset OilType = ""

// IsSet reports whether the oil type carries a concrete grade.
func (t OilType) IsSet() bool { return t != OilUnset }

// FlowModifier returns the relative flow-rate factor for the grade. Heavier
// grades move slower through a pipeline, light distillates slightly faster.
func (t OilType) FlowModifier() float64 {
	switch strings.ToLower(string(t)) {
	case "heavy_oil":
		return 0.7
	case "bitumen":
		return 0.6
	case "gasoline", "diesel":
		return 1.1
	case "jetfuel":
		return 1.05
	default:
		return 1.0
	}
}
