package property

import "time"

// Type classifies a property.
type Type string

// Property types.
const (
	TypeResidential Type = "residential"
	TypeCommercial  Type = "commercial"
	TypeMixed       Type = "mixed"
)

// ValidTypes is the fixed set of property types.
var ValidTypes = []Type{TypeResidential, TypeCommercial, TypeMixed}

// Status is the occupancy state of a unit.
type Status string

// Unit statuses.
const (
	StatusVacant      Status = "vacant"
	StatusOccupied    Status = "occupied"
	StatusMaintenance Status = "maintenance"
)

// ValidStatuses is the fixed set of unit statuses.
var ValidStatuses = []Status{StatusVacant, StatusOccupied, StatusMaintenance}

// Property is a building or estate owned by a user with the owner role.
type Property struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	Type         Type      `json:"type"`
	OwnerID      string    `json:"owner_id"`
	SupervisorID *string   `json:"supervisor_id"`
	TotalUnits   int       `json:"total_units"`
	ImageURL     *string   `json:"image_url"`
	Description  *string   `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// Unit is a lettable space within a property.
type Unit struct {
	ID         string   `json:"id"`
	PropertyID string   `json:"property_id"`
	UnitNumber string   `json:"unit_number"`
	Floor      *int     `json:"floor"`
	Bedrooms   *int     `json:"bedrooms"`
	Bathrooms  *int     `json:"bathrooms"`
	AreaSqm    *float64 `json:"area_sqm"`
	RentAmount *float64 `json:"rent_amount"`
	Status     Status   `json:"status"`
	TenantID   *string  `json:"tenant_id"`
}

// Filter narrows a property listing. Empty fields are ignored.
type Filter struct {
	OwnerID      string
	SupervisorID string
	City         string
	Skip         int
	Limit        int
}

// DefaultListLimit is the page size used when a listing sets no limit.
const DefaultListLimit = 100
