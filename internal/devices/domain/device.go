package devices

import (
	"strings"
	"time"
)

// DefaultQuantity is applied when a device is created without a quantity.
const DefaultQuantity = 1

// MaxHoursPerDay bounds daily usage.
const MaxHoursPerDay = 24.0

// Device represents a monitored appliance owned by a single user.
type Device struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	PowerWatts  float64   `json:"power_watts"`
	HoursPerDay float64   `json:"hours_per_day"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.OwnerID == "" {
		return newValidationError("owner_id", "must not be empty")
	}
	if err := validateName(d.Name); err != nil {
		return err
	}
	if err := validatePower(d.PowerWatts); err != nil {
		return err
	}
	if err := validateHours(d.HoursPerDay); err != nil {
		return err
	}
	return validateQuantity(d.Quantity)
}

// DeviceInput carries the fields accepted on creation.
type DeviceInput struct {
	Name        string  `json:"name"`
	PowerWatts  float64 `json:"power_watts"`
	HoursPerDay float64 `json:"hours_per_day"`
	Quantity    *int    `json:"quantity,omitempty"`
}

// Validate checks the input without touching any store.
func (in DeviceInput) Validate() error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if err := validatePower(in.PowerWatts); err != nil {
		return err
	}
	if err := validateHours(in.HoursPerDay); err != nil {
		return err
	}
	if in.Quantity != nil {
		return validateQuantity(*in.Quantity)
	}
	return nil
}

// NewDevice builds an unsaved device for the owner. The input must be valid.
func (in DeviceInput) NewDevice(ownerID string) Device {
	quantity := DefaultQuantity
	if in.Quantity != nil {
		quantity = *in.Quantity
	}
	return Device{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(in.Name),
		PowerWatts:  in.PowerWatts,
		HoursPerDay: in.HoursPerDay,
		Quantity:    quantity,
	}
}

// DevicePatch is a partial update; nil fields are left untouched.
type DevicePatch struct {
	Name        *string  `json:"name,omitempty"`
	PowerWatts  *float64 `json:"power_watts,omitempty"`
	HoursPerDay *float64 `json:"hours_per_day,omitempty"`
	Quantity    *int     `json:"quantity,omitempty"`
}

// IsEmpty reports whether the patch carries no field.
func (p DevicePatch) IsEmpty() bool {
	return p.Name == nil && p.PowerWatts == nil && p.HoursPerDay == nil && p.Quantity == nil
}

// Validate checks only the fields present in the patch.
func (p DevicePatch) Validate() error {
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if p.PowerWatts != nil {
		if err := validatePower(*p.PowerWatts); err != nil {
			return err
		}
	}
	if p.HoursPerDay != nil {
		if err := validateHours(*p.HoursPerDay); err != nil {
			return err
		}
	}
	if p.Quantity != nil {
		return validateQuantity(*p.Quantity)
	}
	return nil
}

// Normalized returns a copy with the name trimmed.
func (p DevicePatch) Normalized() DevicePatch {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	return p
}

// Apply replaces the fields present in the patch.
func (p DevicePatch) Apply(d *Device) {
	if d == nil {
		return
	}
	if p.Name != nil {
		d.Name = strings.TrimSpace(*p.Name)
	}
	if p.PowerWatts != nil {
		d.PowerWatts = *p.PowerWatts
	}
	if p.HoursPerDay != nil {
		d.HoursPerDay = *p.HoursPerDay
	}
	if p.Quantity != nil {
		d.Quantity = *p.Quantity
	}
}

// MatchesQuery reports whether the device name contains query, ignoring case.
func (d Device) MatchesQuery(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(d.Name), strings.ToLower(query))
}

// EffectiveQuantity treats unset quantities as a single unit.
func (d Device) EffectiveQuantity() int {
	if d.Quantity < 1 {
		return DefaultQuantity
	}
	return d.Quantity
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return newValidationError("name", "must not be empty")
	}
	return nil
}

func validatePower(watts float64) error {
	if !(watts > 0) {
		return newValidationError("power_watts", "must be greater than 0")
	}
	return nil
}

func validateHours(hours float64) error {
	if !(hours >= 0 && hours <= MaxHoursPerDay) {
		return newValidationError("hours_per_day", "must be between 0 and 24")
	}
	return nil
}

func validateQuantity(quantity int) error {
	if quantity < 1 {
		return newValidationError("quantity", "must be at least 1")
	}
	return nil
}
