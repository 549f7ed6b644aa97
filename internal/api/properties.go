package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amarati/amarati-core/internal/auth"
	"github.com/amarati/amarati-core/internal/property"
)

type createPropertyRequest struct {
	Name         string        `json:"name" validate:"required,min=2,max=255"`
	Address      string        `json:"address" validate:"required,min=5"`
	City         string        `json:"city" validate:"required,min=2,max=100"`
	Type         property.Type `json:"type" validate:"omitempty,oneof=residential commercial mixed"`
	Description  *string       `json:"description"`
	ImageURL     *string       `json:"image_url"`
	OwnerID      string        `json:"owner_id" validate:"required"`
	SupervisorID *string       `json:"supervisor_id"`
}

type updatePropertyRequest struct {
	Name         *string        `json:"name" validate:"omitempty,min=2,max=255"`
	Address      *string        `json:"address" validate:"omitempty,min=5"`
	City         *string        `json:"city" validate:"omitempty,min=2,max=100"`
	Type         *property.Type `json:"type" validate:"omitempty,oneof=residential commercial mixed"`
	Description  *string        `json:"description"`
	ImageURL     *string        `json:"image_url"`
	SupervisorID *string        `json:"supervisor_id"`
}

func (req updatePropertyRequest) apply(p *property.Property) {
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.City != nil {
		p.City = *req.City
	}
	if req.Type != nil {
		p.Type = *req.Type
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.ImageURL != nil {
		p.ImageURL = req.ImageURL
	}
	if req.SupervisorID != nil {
		p.SupervisorID = req.SupervisorID
	}
}

func propertyNotFound(id string) string {
	return fmt.Sprintf("Property with ID %s not found", id)
}

// handleCreateProperty registers a property.
func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	var req createPropertyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := &property.Property{
		Name:         req.Name,
		Address:      req.Address,
		City:         req.City,
		Type:         req.Type,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		OwnerID:      req.OwnerID,
		SupervisorID: req.SupervisorID,
	}
	if err := s.properties.CreateProperty(r.Context(), p); err != nil {
		s.writePropertyError(w, r, err, "")
		return
	}

	s.auditLog("property.create", "property", p.ID, callerID(r), map[string]any{"name": p.Name})
	writeJSON(w, http.StatusCreated, p)
}

// handleListProperties returns a page of properties.
//
// Query parameters:
//   - skip, limit: paging (limit defaults to 100)
//   - owner_id, supervisor_id, city: optional filters
func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	skip, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	props, err := s.properties.ListProperties(r.Context(), property.Filter{
		OwnerID:      q.Get("owner_id"),
		SupervisorID: q.Get("supervisor_id"),
		City:         q.Get("city"),
		Skip:         skip,
		Limit:        limit,
	})
	if err != nil {
		s.logger.Error("list properties failed", "error", err)
		writeInternalError(w, "failed to list properties")
		return
	}
	if props == nil {
		props = []property.Property{}
	}
	writeJSON(w, http.StatusOK, props)
}

// handleGetProperty returns one property.
func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	id := chi.URLParam(r, "id")
	p, err := s.properties.GetProperty(r.Context(), id)
	if err != nil {
		s.writePropertyError(w, r, err, id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleUpdateProperty applies a partial update.
func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	var req updatePropertyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	p, err := s.properties.GetProperty(r.Context(), id)
	if err != nil {
		s.writePropertyError(w, r, err, id)
		return
	}

	req.apply(p)
	if err := s.properties.UpdateProperty(r.Context(), p); err != nil {
		s.writePropertyError(w, r, err, id)
		return
	}

	s.auditLog("property.update", "property", p.ID, callerID(r), nil)
	writeJSON(w, http.StatusOK, p)
}

// handleDeleteProperty removes a property and its units.
func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.properties.DeleteProperty(r.Context(), id); err != nil {
		s.writePropertyError(w, r, err, id)
		return
	}

	s.auditLog("property.delete", "property", id, callerID(r), nil)
	w.WriteHeader(http.StatusNoContent)
}

// writePropertyError maps property and unit repository errors. id names
// the property or unit the request addressed.
func (s *Server) writePropertyError(w http.ResponseWriter, r *http.Request, err error, id string) {
	switch {
	case errors.Is(err, property.ErrPropertyNotFound):
		writeNotFound(w, propertyNotFound(id))
	case errors.Is(err, property.ErrUnitNotFound):
		writeNotFound(w, fmt.Sprintf("Unit with ID %s not found", id))
	case errors.Is(err, property.ErrInvalidReference):
		writeBadRequest(w, "Referenced user does not exist")
	case errors.Is(err, property.ErrInvalidProperty), errors.Is(err, property.ErrInvalidUnit):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	default:
		s.logger.Error("property request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeInternalError(w, "internal server error")
	}
}

// pageParams reads skip and limit. Both must be non-negative integers.
func pageParams(w http.ResponseWriter, r *http.Request) (skip, limit int, ok bool) {
	skip, ok = queryInt(r, "skip", 0)
	if !ok || skip < 0 {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "skip: must be a non-negative integer")
		return 0, 0, false
	}
	limit, ok = queryInt(r, "limit", property.DefaultListLimit)
	if !ok || limit < 0 {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "limit: must be a non-negative integer")
		return 0, 0, false
	}
	return skip, limit, true
}

// callerID returns the signed-in user's ID, or "" for anonymous requests.
func callerID(r *http.Request) string {
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		return id.UserID
	}
	return ""
}
