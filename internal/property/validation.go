package property

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	minNameLength       = 2
	maxNameLength       = 255
	minAddressLength    = 5
	minCityLength       = 2
	maxCityLength       = 100
	maxUnitNumberLength = 50
)

// ValidType returns true if t is one of ValidTypes.
func ValidType(t Type) bool {
	for _, v := range ValidTypes {
		if t == v {
			return true
		}
	}
	return false
}

// ValidStatus returns true if s is one of ValidStatuses.
func ValidStatus(s Status) bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < minLen {
		return fmt.Errorf("%s must be at least %d characters", field, minLen)
	}
	if maxLen > 0 && n > maxLen {
		return fmt.Errorf("%s exceeds %d characters", field, maxLen)
	}
	return nil
}

// ValidateProperty validates a Property before persistence. An empty type
// defaults to residential.
func ValidateProperty(p *Property) error {
	if err := checkLength("name", p.Name, minNameLength, maxNameLength); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProperty, err)
	}
	if err := checkLength("address", p.Address, minAddressLength, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProperty, err)
	}
	if err := checkLength("city", p.City, minCityLength, maxCityLength); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProperty, err)
	}
	if p.OwnerID == "" {
		return fmt.Errorf("%w: owner_id is required", ErrInvalidProperty)
	}
	if p.Type == "" {
		p.Type = TypeResidential
	}
	if !ValidType(p.Type) {
		return fmt.Errorf("%w: invalid type %q", ErrInvalidProperty, p.Type)
	}
	return nil
}

// ValidateUnit validates a Unit before persistence. An empty status
// defaults to vacant.
func ValidateUnit(u *Unit) error {
	if err := checkLength("unit_number", u.UnitNumber, 1, maxUnitNumberLength); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUnit, err)
	}
	if u.PropertyID == "" {
		return fmt.Errorf("%w: property_id is required", ErrInvalidUnit)
	}
	if u.Status == "" {
		u.Status = StatusVacant
	}
	if !ValidStatus(u.Status) {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidUnit, u.Status)
	}
	return nil
}
