package devices

import (
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func TestDeviceInputValidate(t *testing.T) {
	cases := []struct {
		name  string
		input DeviceInput
		field string
	}{
		{name: "valid", input: DeviceInput{Name: "Fridge", PowerWatts: 150, HoursPerDay: 24}},
		{name: "min power", input: DeviceInput{Name: "LED", PowerWatts: 1, HoursPerDay: 0}},
		{name: "empty name", input: DeviceInput{Name: "", PowerWatts: 100, HoursPerDay: 1}, field: "name"},
		{name: "blank name", input: DeviceInput{Name: "   ", PowerWatts: 100, HoursPerDay: 1}, field: "name"},
		{name: "zero power", input: DeviceInput{Name: "TV", PowerWatts: 0, HoursPerDay: 1}, field: "power_watts"},
		{name: "negative power", input: DeviceInput{Name: "TV", PowerWatts: -5, HoursPerDay: 1}, field: "power_watts"},
		{name: "too many hours", input: DeviceInput{Name: "TV", PowerWatts: 100, HoursPerDay: 25}, field: "hours_per_day"},
		{name: "negative hours", input: DeviceInput{Name: "TV", PowerWatts: 100, HoursPerDay: -1}, field: "hours_per_day"},
		{name: "zero quantity", input: DeviceInput{Name: "TV", PowerWatts: 100, HoursPerDay: 1, Quantity: intPtr(0)}, field: "quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.input.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, verr.Field)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected errors.Is ErrValidation")
			}
		})
	}
}

func TestDeviceInputNewDeviceDefaultsQuantity(t *testing.T) {
	d := DeviceInput{Name: "  Lamp ", PowerWatts: 60, HoursPerDay: 5}.NewDevice("user-1")
	if d.Quantity != DefaultQuantity {
		t.Fatalf("expected default quantity, got %d", d.Quantity)
	}
	if d.Name != "Lamp" {
		t.Fatalf("expected trimmed name, got %q", d.Name)
	}
	if d.OwnerID != "user-1" {
		t.Fatalf("expected owner user-1, got %s", d.OwnerID)
	}
}

func TestDevicePatchValidatesPresentFieldsOnly(t *testing.T) {
	if err := (DevicePatch{}).Validate(); err != nil {
		t.Fatalf("empty patch should be valid: %v", err)
	}
	if err := (DevicePatch{HoursPerDay: floatPtr(24)}).Validate(); err != nil {
		t.Fatalf("expected valid hours: %v", err)
	}
	err := DevicePatch{Name: strPtr(" ")}.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
	err = DevicePatch{PowerWatts: floatPtr(0)}.Validate()
	if !errors.As(err, &verr) || verr.Field != "power_watts" {
		t.Fatalf("expected power validation error, got %v", err)
	}
}

func TestDevicePatchApply(t *testing.T) {
	d := Device{Name: "Old", PowerWatts: 10, HoursPerDay: 1, Quantity: 1}
	DevicePatch{Name: strPtr(" New "), Quantity: intPtr(3)}.Apply(&d)
	if d.Name != "New" || d.Quantity != 3 || d.PowerWatts != 10 {
		t.Fatalf("unexpected device after patch: %+v", d)
	}
}

func TestSortNewestFirstAndFilter(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	list := []Device{
		{ID: "a", Name: "Air Conditioner", CreatedAt: base},
		{ID: "b", Name: "Fridge", CreatedAt: base.Add(time.Hour)},
		{ID: "c", Name: "air fryer", CreatedAt: base.Add(2 * time.Hour)},
	}
	SortNewestFirst(list)
	if list[0].ID != "c" || list[2].ID != "a" {
		t.Fatalf("unexpected order: %v %v %v", list[0].ID, list[1].ID, list[2].ID)
	}
	filtered := FilterByQuery(list, "AIR")
	if len(filtered) != 2 || filtered[0].ID != "c" || filtered[1].ID != "a" {
		t.Fatalf("unexpected filter result: %+v", filtered)
	}
	if got := FilterByQuery(list, "  "); len(got) != 3 {
		t.Fatalf("blank query should keep all, got %d", len(got))
	}
}
