package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amarati/amarati-core/internal/property"
)

type createUnitRequest struct {
	UnitNumber string          `json:"unit_number" validate:"required,min=1,max=50"`
	Floor      *int            `json:"floor"`
	Bedrooms   *int            `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms  *int            `json:"bathrooms" validate:"omitempty,gte=0"`
	AreaSqm    *float64        `json:"area_sqm" validate:"omitempty,gte=0"`
	RentAmount *float64        `json:"rent_amount" validate:"omitempty,gte=0"`
	Status     property.Status `json:"status" validate:"omitempty,oneof=vacant occupied maintenance"`
	PropertyID string          `json:"property_id" validate:"required"`
}

type updateUnitRequest struct {
	UnitNumber *string          `json:"unit_number" validate:"omitempty,min=1,max=50"`
	Floor      *int             `json:"floor"`
	Bedrooms   *int             `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms  *int             `json:"bathrooms" validate:"omitempty,gte=0"`
	AreaSqm    *float64         `json:"area_sqm" validate:"omitempty,gte=0"`
	RentAmount *float64         `json:"rent_amount" validate:"omitempty,gte=0"`
	Status     *property.Status `json:"status" validate:"omitempty,oneof=vacant occupied maintenance"`
	TenantID   *string          `json:"tenant_id"`
}

func (req updateUnitRequest) apply(u *property.Unit) {
	if req.UnitNumber != nil {
		u.UnitNumber = *req.UnitNumber
	}
	if req.Floor != nil {
		u.Floor = req.Floor
	}
	if req.Bedrooms != nil {
		u.Bedrooms = req.Bedrooms
	}
	if req.Bathrooms != nil {
		u.Bathrooms = req.Bathrooms
	}
	if req.AreaSqm != nil {
		u.AreaSqm = req.AreaSqm
	}
	if req.RentAmount != nil {
		u.RentAmount = req.RentAmount
	}
	if req.Status != nil {
		u.Status = *req.Status
	}
	if req.TenantID != nil {
		u.TenantID = req.TenantID
	}
}

// handleCreateUnit adds a unit to a property.
func (s *Server) handleCreateUnit(w http.ResponseWriter, r *http.Request) {
	var req createUnitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u := &property.Unit{
		PropertyID: req.PropertyID,
		UnitNumber: req.UnitNumber,
		Floor:      req.Floor,
		Bedrooms:   req.Bedrooms,
		Bathrooms:  req.Bathrooms,
		AreaSqm:    req.AreaSqm,
		RentAmount: req.RentAmount,
		Status:     req.Status,
	}
	if err := s.properties.CreateUnit(r.Context(), u); err != nil {
		s.writePropertyError(w, r, err, req.PropertyID)
		return
	}

	s.auditLog("unit.create", "unit", u.ID, callerID(r), map[string]any{"property_id": u.PropertyID})
	writeJSON(w, http.StatusCreated, u)
}

// handleListUnitsByProperty returns a page of a property's units.
func (s *Server) handleListUnitsByProperty(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	skip, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	units, err := s.properties.ListUnitsByProperty(r.Context(), chi.URLParam(r, "propertyID"), skip, limit)
	if err != nil {
		s.logger.Error("list units failed", "error", err)
		writeInternalError(w, "failed to list units")
		return
	}
	if units == nil {
		units = []property.Unit{}
	}
	writeJSON(w, http.StatusOK, units)
}

// handleGetUnit returns one unit.
func (s *Server) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	id := chi.URLParam(r, "id")
	u, err := s.properties.GetUnit(r.Context(), id)
	if err != nil {
		s.writePropertyError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleUpdateUnit applies a partial update.
func (s *Server) handleUpdateUnit(w http.ResponseWriter, r *http.Request) {
	var req updateUnitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	u, err := s.properties.GetUnit(r.Context(), id)
	if err != nil {
		s.writePropertyError(w, r, err, id)
		return
	}

	req.apply(u)
	if err := s.properties.UpdateUnit(r.Context(), u); err != nil {
		s.writePropertyError(w, r, err, id)
		return
	}

	s.auditLog("unit.update", "unit", u.ID, callerID(r), nil)
	writeJSON(w, http.StatusOK, u)
}

// handleDeleteUnit removes a unit.
func (s *Server) handleDeleteUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.properties.DeleteUnit(r.Context(), id); err != nil {
		s.writePropertyError(w, r, err, id)
		return
	}

	s.auditLog("unit.delete", "unit", id, callerID(r), nil)
	w.WriteHeader(http.StatusNoContent)
}
