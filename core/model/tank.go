package model

// TankRole restricts which side of a transfer a tank may participate in.
type TankRole string

const (
	RoleSource TankRole = "SOURCE"
	RoleTarget TankRole = "TARGET"
	RoleMiddle TankRole = "MIDDLE"
)

// TankStatus describes operational availability.
type TankStatus string

const (
	TankAvailable   TankStatus = "AVAILABLE"
	TankReserved    TankStatus = "RESERVED"
	TankMaintenance TankStatus = "MAINTENANCE"
)

// TankConfig holds the static description of a storage tank.
type TankConfig struct {
	ID           string     `json:"id"`
	SiteID       string     `json:"site_id"`
	Name         string     `json:"name"`
	MaxCapacity  float64    `json:"max_capacity"`  // absolute physical limit in m3
	SafeCapacity float64    `json:"safe_capacity"` // operational fill ceiling in m3
	MinSafeLevel float64    `json:"min_safe_level"`
	Roles        []TankRole `json:"roles"`
}

// HasRole reports whether the tank is allowed to act as the given role.
func (c TankConfig) HasRole(r TankRole) bool {
	for _, have := range c.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// Tank combines the static configuration with the mutable runtime values.
// Runtime values are only ever changed by producing a new ResourceState.
type Tank struct {
	Config    TankConfig `json:"config"`
	OilType   OilType    `json:"oil_type"`
	Inventory float64    `json:"inventory"`
	Status    TankStatus `json:"status"`
}

// IsEmpty reports whether the tank holds no assigned grade.
func (t Tank) IsEmpty() bool { return !t.OilType.IsSet() }

// AvailableVolume is the inventory that can leave the tank without breaching
// the minimum safe level.
func (t Tank) AvailableVolume() float64 {
	v := t.Inventory - t.Config.MinSafeLevel
	if v < 0 {
		return 0
	}
	return v
}

// FreeCapacity is the volume the tank can still accept below its safe fill
// ceiling.
func (t Tank) FreeCapacity() float64 {
	v := t.Config.SafeCapacity - t.Inventory
	if v < 0 {
		return 0
	}
	return v
}

// AcceptsOil reports whether a transfer of the given grade into or out of the
// tank is compatible: the tank is either empty or already holds that grade.
// Incompatible transfers are still possible but require cleaning.
func (t Tank) AcceptsOil(oil OilType) bool {
	return t.IsEmpty() || t.OilType == oil
}

// Clone returns an independent copy of the tank.
func (t Tank) Clone() Tank {
	cp := t
	cp.Config.Roles = append([]TankRole(nil), t.Config.Roles...)
	return cp
}
