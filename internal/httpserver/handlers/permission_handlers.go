package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"authgate/internal/apperr"
	"authgate/internal/audit"
	"authgate/internal/auth"
	"authgate/internal/models"
	"authgate/internal/store"
)

func ListPermissions(perms *store.Permissions, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := perms.List(r.Context())
		if err != nil {
			lg.Errorw("permission list failed", "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		respondData(w, http.StatusOK, list)
	}
}

func GetPermission(perms *store.Permissions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := perms.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			apperr.WriteError(w, apperr.NotFound("permission not found"))
			return
		}
		respondData(w, http.StatusOK, p)
	}
}

type permissionReq struct {
	Resource    *string `json:"resource"`
	Action      *string `json:"action"`
	DisplayName *string `json:"displayName"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

// CreatePermission derives the dotted name from resource and action; a
// permission is one atomic capability, never composite.
func CreatePermission(perms *store.Permissions, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req permissionReq
		if err := decodeJSON(r, &req); err != nil {
			apperr.WriteError(w, err)
			return
		}
		details := map[string]string{}
		if req.Resource == nil || *req.Resource == "" {
			details["resource"] = "is required"
		}
		if req.Action == nil || *req.Action == "" {
			details["action"] = "is required"
		}
		if len(details) > 0 {
			apperr.WriteError(w, apperr.Validation("invalid permission data", details))
			return
		}
		p := models.Permission{
			Name:     *req.Resource + "." + *req.Action,
			Resource: *req.Resource,
			Action:   *req.Action,
		}
		p.DisplayName = p.Name
		if req.DisplayName != nil {
			p.DisplayName = *req.DisplayName
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Category != nil {
			p.Category = *req.Category
		}
		if err := perms.Create(r.Context(), &p); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				apperr.WriteError(w, apperr.Conflict("permission already exists"))
				return
			}
			lg.Errorw("permission create failed", "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		actor, _ := auth.IdentityFromContext(r.Context())
		rec.Record(r.Context(), audit.Event{
			UserID: actor.UserID, UserEmail: actor.Email,
			Action: "permissions.create", Resource: "permissions", ResourceID: p.ID,
			Details: map[string]any{"name": p.Name},
		})
		respondData(w, http.StatusCreated, p)
	}
}

func UpdatePermission(perms *store.Permissions, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req permissionReq
		if err := decodeJSON(r, &req); err != nil {
			apperr.WriteError(w, err)
			return
		}
		p, err := perms.FindByID(r.Context(), id)
		if err != nil {
			apperr.WriteError(w, apperr.NotFound("permission not found"))
			return
		}
		// resource.action is the identity; only presentation fields move.
		if req.DisplayName != nil {
			p.DisplayName = *req.DisplayName
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Category != nil {
			p.Category = *req.Category
		}
		if err := perms.Save(r.Context(), p); err != nil {
			lg.Errorw("permission update failed", "permission", id, "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		actor, _ := auth.IdentityFromContext(r.Context())
		rec.Record(r.Context(), audit.Event{
			UserID: actor.UserID, UserEmail: actor.Email,
			Action: "permissions.update", Resource: "permissions", ResourceID: p.ID,
		})
		respondData(w, http.StatusOK, p)
	}
}

func DeletePermission(perms *store.Permissions, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := perms.Delete(r.Context(), id); err != nil {
			switch {
			case errors.Is(err, store.ErrSystemPermission):
				apperr.WriteError(w, apperr.Forbidden("system permissions cannot be deleted"))
			case errors.Is(err, store.ErrNotFound):
				apperr.WriteError(w, apperr.NotFound("permission not found"))
			default:
				lg.Errorw("permission delete failed", "permission", id, "error", err)
				apperr.WriteError(w, apperr.Internal())
			}
			return
		}
		actor, _ := auth.IdentityFromContext(r.Context())
		rec.Record(r.Context(), audit.Event{
			UserID: actor.UserID, UserEmail: actor.Email,
			Action: "permissions.delete", Resource: "permissions", ResourceID: id,
		})
		respondMessage(w, http.StatusOK, "permission deleted")
	}
}
