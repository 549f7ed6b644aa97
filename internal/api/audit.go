package api

import (
	"net/http"

	"github.com/amarati/amarati-core/internal/audit"
)

// auditLog enqueues an audit entry for the background recorder. It never
// blocks the request; entries are dropped when the recorder queue is full.
func (s *Server) auditLog(action, entityType, entityID, userID string, details map[string]any) {
	s.audit.Record(&audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Source:     audit.SourceAPI,
		Details:    details,
	})
}

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: filter by action (user.login, property.create, ...)
//   - entity_type: filter by entity type (user, property, unit)
//   - entity_id: filter by specific entity ID
//   - user_id: filter by acting user
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeInternalError(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		UserID:     q.Get("user_id"),
	}

	var ok bool
	if filter.Limit, ok = queryInt(r, "limit", 0); !ok {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "limit: must be an integer")
		return
	}
	if filter.Offset, ok = queryInt(r, "offset", 0); !ok || filter.Offset < 0 {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "offset: must be a non-negative integer")
		return
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
