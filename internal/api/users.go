package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/amarati/amarati-core/internal/auth"
)

// User list paging bounds.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type updateUserRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=2,max=255"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	AvatarURL *string `json:"avatar_url"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

type userListResponse struct {
	Users    []userResponse `json:"users"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// handleListUsers returns a page of accounts, optionally filtered by role
// and active flag.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page", 1)
	if !ok || page < 1 {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "page: must be an integer >= 1")
		return
	}
	pageSize, ok := queryInt(r, "page_size", defaultPageSize)
	if !ok || pageSize < 1 || pageSize > maxPageSize {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "page_size: must be an integer between 1 and 100")
		return
	}

	filter := auth.UserFilter{Limit: pageSize, Offset: (page - 1) * pageSize}
	if v := r.URL.Query().Get("role"); v != "" {
		role := auth.Role(v)
		if !auth.IsValidRole(role) {
			writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "role: must be one of: owner tenant supervisor provider admin")
			return
		}
		filter.Role = role
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "is_active: must be a boolean")
			return
		}
		filter.IsActive = &active
	}

	users, total, err := s.users.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	resp := userListResponse{
		Users:    make([]userResponse, 0, len(users)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for i := range users {
		resp.Users = append(resp.Users, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetUser returns one account. Non-admins may only read their own.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if caller.Role != auth.RoleAdmin && caller.UserID != id {
		writeForbidden(w, "You can only view your own profile")
		return
	}

	user, ok := s.loadUser(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleUpdateUser applies a partial profile update. Non-admins may only
// update their own profile.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if caller.Role != auth.RoleAdmin && caller.UserID != id {
		writeForbidden(w, "You can only update your own profile")
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, ok := s.loadUser(w, r, id)
	if !ok {
		return
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, auth.ErrPhoneExists):
			writeConflict(w, "Phone number already registered")
		case errors.Is(err, auth.ErrUserNotFound):
			writeNotFound(w, "User not found")
		default:
			s.logger.Error("update user failed", "user_id", id, "error", err)
			writeInternalError(w, "failed to update user")
		}
		return
	}

	s.auditLog("user.update", "user", user.ID, caller.UserID, nil)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleChangePassword changes the caller's own password.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if caller.UserID != id {
		writeForbidden(w, "You can only change your own password")
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := s.authSvc.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword)
	s.metrics.authOutcome(flowChangePassword, err)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: auth.MsgPasswordChanged})
}

// handleDeactivateUser soft-deletes an account and returns it.
func (s *Server) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.users.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return
		}
		s.logger.Error("deactivate user failed", "user_id", id, "error", err)
		writeInternalError(w, "failed to deactivate user")
		return
	}

	user, ok := s.loadUser(w, r, id)
	if !ok {
		return
	}

	s.auditLog("user.deactivate", "user", id, callerID(r), nil)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) loadUser(w http.ResponseWriter, r *http.Request, id string) (*auth.User, bool) {
	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "User not found")
			return nil, false
		}
		s.logger.Error("get user failed", "user_id", id, "error", err)
		writeInternalError(w, "failed to get user")
		return nil, false
	}
	return user, true
}
