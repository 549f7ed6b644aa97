package property

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateProperty_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Property)
		wantErr bool
	}{
		{"minimum name", func(p *Property) { p.Name = "AB" }, false},
		{"maximum name", func(p *Property) { p.Name = strings.Repeat("n", 255) }, false},
		{"name too long", func(p *Property) { p.Name = strings.Repeat("n", 256) }, true},
		{"whitespace name", func(p *Property) { p.Name = "   " }, true},
		{"city too long", func(p *Property) { p.City = strings.Repeat("c", 101) }, true},
		{"commercial", func(p *Property) { p.Type = TypeCommercial }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProperty("Valid")
			tt.mutate(p)
			err := ValidateProperty(p)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProperty() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidProperty) {
				t.Errorf("error %v does not wrap ErrInvalidProperty", err)
			}
		})
	}
}

func TestValidateUnit_Defaults(t *testing.T) {
	u := &Unit{PropertyID: "prop-1", UnitNumber: "1"}
	if err := ValidateUnit(u); err != nil {
		t.Fatalf("ValidateUnit() error = %v", err)
	}
	if u.Status != StatusVacant {
		t.Errorf("Status = %q, want vacant", u.Status)
	}

	long := &Unit{PropertyID: "prop-1", UnitNumber: strings.Repeat("9", 51)}
	if err := ValidateUnit(long); !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("ValidateUnit(long) error = %v, want ErrInvalidUnit", err)
	}
}
