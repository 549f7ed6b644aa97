package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amarati/amarati-core/internal/audit"
	"github.com/amarati/amarati-core/internal/auth"
	"github.com/amarati/amarati-core/internal/property"
)

func newPropertyBody(ownerID string) map[string]any {
	return map[string]any{
		"name":     "Harbour View",
		"address":  "12 Quay Street",
		"city":     "Lisbon",
		"owner_id": ownerID,
	}
}

func TestProperties_CRUD(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.seedUser(t, "owner@amarati.test", auth.RoleOwner)
	_, tenantToken := env.seedUser(t, "tenant@amarati.test", auth.RoleTenant)

	rec := env.do(t, http.MethodPost, "/api/v1/properties", ownerToken, newPropertyBody(owner.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[property.Property](t, rec)
	assert.Regexp(t, `^prop-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, created.ID)
	assert.Equal(t, property.TypeResidential, created.Type)
	assert.Equal(t, 0, created.TotalUnits)

	rec = env.do(t, http.MethodGet, "/api/v1/properties", tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]property.Property](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/v1/properties?city=lisbon&owner_id="+owner.ID, tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]property.Property](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/v1/properties?city=Porto", tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/properties/"+created.ID, tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Harbour View", decode[property.Property](t, rec).Name)

	rec = env.do(t, http.MethodPut, "/api/v1/properties/"+created.ID, ownerToken, map[string]any{
		"name": "Harbour View II",
		"type": "mixed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[property.Property](t, rec)
	assert.Equal(t, "Harbour View II", updated.Name)
	assert.Equal(t, property.TypeMixed, updated.Type)
	assert.Equal(t, "Lisbon", updated.City)

	rec = env.do(t, http.MethodDelete, "/api/v1/properties/"+created.ID, ownerToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/properties/"+created.ID, ownerToken, nil)
	requireError(t, rec, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("Property with ID %s not found", created.ID))
}

func TestProperties_AccessControl(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.seedUser(t, "owner@amarati.test", auth.RoleOwner)
	_, tenantToken := env.seedUser(t, "tenant@amarati.test", auth.RoleTenant)
	_, supervisorToken := env.seedUser(t, "super@amarati.test", auth.RoleSupervisor)

	// Role-gated routes answer 403 to anonymous callers.
	rec := env.do(t, http.MethodPost, "/api/v1/properties", "", newPropertyBody(owner.ID))
	requireError(t, rec, http.StatusForbidden, ErrCodeForbidden, "Authentication required")

	rec = env.do(t, http.MethodPost, "/api/v1/properties", tenantToken, newPropertyBody(owner.ID))
	requireError(t, rec, http.StatusForbidden, ErrCodeForbidden, "Role 'tenant' is not authorized. Required: owner, admin")

	rec = env.do(t, http.MethodDelete, "/api/v1/properties/prop-anything", supervisorToken, nil)
	requireError(t, rec, http.StatusForbidden, ErrCodeForbidden, "Role 'supervisor' is not authorized. Required: owner, admin")

	// Read routes need a signed-in user.
	rec = env.do(t, http.MethodGet, "/api/v1/properties", "", nil)
	requireError(t, rec, http.StatusUnauthorized, ErrCodeUnauthorized, msgCredentials)
	rec = env.do(t, http.MethodGet, "/api/v1/properties/prop-anything", "", nil)
	requireError(t, rec, http.StatusUnauthorized, ErrCodeUnauthorized, msgCredentials)
}

func TestProperties_Errors(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.seedUser(t, "owner@amarati.test", auth.RoleOwner)

	body := newPropertyBody("usr-ghost")
	rec := env.do(t, http.MethodPost, "/api/v1/properties", ownerToken, body)
	requireError(t, rec, http.StatusBadRequest, ErrCodeBadRequest, "Referenced user does not exist")

	body = newPropertyBody(owner.ID)
	body["type"] = "castle"
	rec = env.do(t, http.MethodPost, "/api/v1/properties", ownerToken, body)
	requireError(t, rec, http.StatusUnprocessableEntity, ErrCodeValidation, "")

	body = newPropertyBody(owner.ID)
	body["address"] = "1 A"
	rec = env.do(t, http.MethodPost, "/api/v1/properties", ownerToken, body)
	requireError(t, rec, http.StatusUnprocessableEntity, ErrCodeValidation, "")

	rec = env.do(t, http.MethodPut, "/api/v1/properties/prop-missing", ownerToken, map[string]any{"name": "Nowhere"})
	requireError(t, rec, http.StatusNotFound, ErrCodeNotFound, "Property with ID prop-missing not found")

	rec = env.do(t, http.MethodDelete, "/api/v1/properties/prop-missing", ownerToken, nil)
	requireError(t, rec, http.StatusNotFound, ErrCodeNotFound, "Property with ID prop-missing not found")

	rec = env.do(t, http.MethodGet, "/api/v1/properties?limit=-1", ownerToken, nil)
	requireError(t, rec, http.StatusUnprocessableEntity, ErrCodeValidation, "")
}

func TestUnits_CRUD(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.seedUser(t, "owner@amarati.test", auth.RoleOwner)
	_, supervisorToken := env.seedUser(t, "super@amarati.test", auth.RoleSupervisor)
	tenant, tenantToken := env.seedUser(t, "tenant@amarati.test", auth.RoleTenant)

	rec := env.do(t, http.MethodPost, "/api/v1/properties", ownerToken, newPropertyBody(owner.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	prop := decode[property.Property](t, rec)

	for _, number := range []string{"2B", "1A"} {
		rec = env.do(t, http.MethodPost, "/api/v1/units", ownerToken, map[string]any{
			"property_id": prop.ID,
			"unit_number": number,
			"bedrooms":    2,
			"rent_amount": 950.5,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/properties/"+prop.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[property.Property](t, rec).TotalUnits)

	rec = env.do(t, http.MethodGet, "/api/v1/units/property/"+prop.ID, tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	units := decode[[]property.Unit](t, rec)
	require.Len(t, units, 2)
	assert.Equal(t, "1A", units[0].UnitNumber)
	assert.Equal(t, property.StatusVacant, units[0].Status)

	unitID := units[0].ID
	rec = env.do(t, http.MethodPut, "/api/v1/units/"+unitID, supervisorToken, map[string]any{
		"status":    "occupied",
		"tenant_id": tenant.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[property.Unit](t, rec)
	assert.Equal(t, property.StatusOccupied, updated.Status)
	require.NotNil(t, updated.TenantID)
	assert.Equal(t, tenant.ID, *updated.TenantID)
	require.NotNil(t, updated.Bedrooms)
	assert.Equal(t, 2, *updated.Bedrooms)

	rec = env.do(t, http.MethodGet, "/api/v1/units/"+unitID, tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Supervisors may update units but not delete them.
	rec = env.do(t, http.MethodDelete, "/api/v1/units/"+unitID, supervisorToken, nil)
	requireError(t, rec, http.StatusForbidden, ErrCodeForbidden, "Role 'supervisor' is not authorized. Required: owner, admin")

	rec = env.do(t, http.MethodDelete, "/api/v1/units/"+unitID, ownerToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/units/"+unitID, ownerToken, nil)
	requireError(t, rec, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("Unit with ID %s not found", unitID))

	rec = env.do(t, http.MethodGet, "/api/v1/properties/"+prop.ID, ownerToken, nil)
	assert.Equal(t, 1, decode[property.Property](t, rec).TotalUnits)

	require.Eventually(t, func() bool {
		res, err := env.auditRepo.List(context.Background(), audit.Filter{EntityType: "unit"})
		return err == nil && res.Total == 4
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnits_Errors(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.seedUser(t, "owner@amarati.test", auth.RoleOwner)
	_, tenantToken := env.seedUser(t, "tenant@amarati.test", auth.RoleTenant)

	rec := env.do(t, http.MethodPost, "/api/v1/units", ownerToken, map[string]any{
		"property_id": "prop-missing",
		"unit_number": "1A",
	})
	requireError(t, rec, http.StatusNotFound, ErrCodeNotFound, "Property with ID prop-missing not found")

	rec = env.do(t, http.MethodPost, "/api/v1/units", ownerToken, map[string]any{
		"property_id": "prop-missing",
		"unit_number": "1A",
		"bedrooms":    -1,
	})
	requireError(t, rec, http.StatusUnprocessableEntity, ErrCodeValidation, "")

	rec = env.do(t, http.MethodPost, "/api/v1/units", tenantToken, map[string]any{
		"property_id": "prop-missing",
		"unit_number": "1A",
	})
	requireError(t, rec, http.StatusForbidden, ErrCodeForbidden, "Role 'tenant' is not authorized. Required: owner, admin")

	rec = env.do(t, http.MethodPut, "/api/v1/units/unit-missing", ownerToken, map[string]any{"status": "maintenance"})
	requireError(t, rec, http.StatusNotFound, ErrCodeNotFound, "Unit with ID unit-missing not found")

	rec = env.do(t, http.MethodGet, "/api/v1/units/property/prop-missing", "", nil)
	requireError(t, rec, http.StatusUnauthorized, ErrCodeUnauthorized, msgCredentials)

	rec = env.do(t, http.MethodGet, "/api/v1/units/property/prop-missing", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
