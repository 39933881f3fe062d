package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/suffus/auth0/cmd/identity"
	"github.com/suffus/auth0/cmd/internal/event"
	"github.com/suffus/auth0/cmd/internal/resource"
)

// catalogRoutes maps URL segments to catalog kinds.
var catalogRoutes = map[string]resource.Kind{
	"locations":     resource.KindLocation,
	"user-statuses": resource.KindUserStatus,
	"actions":       resource.KindAction,
}

// registerCatalog mounts the catalog CRUD and the activity log. Reads take a
// bearer token; every write takes a fresh device code.
func (h *Handler) registerCatalog(mux *http.ServeMux) {
	for path, kind := range catalogRoutes {
		mux.HandleFunc("GET /"+path, h.requireSession(h.handleListEntries(kind)))
		mux.HandleFunc("GET /"+path+"/{id}", h.requireSession(h.handleGetEntry(kind)))
		mux.HandleFunc("POST /"+path, h.requireFreshCode(h.handleCreateEntry(kind)))
		mux.HandleFunc("PUT /"+path+"/{id}", h.requireFreshCode(h.handleUpdateEntry(kind)))
		mux.HandleFunc("DELETE /"+path+"/{id}", h.requireFreshCode(h.handleDeleteEntry(kind)))
	}

	mux.HandleFunc("GET /user-activity", h.requireSession(h.handleListActivity))
	mux.HandleFunc("GET /user-activity/{user_id}", h.requireSession(h.handleListActivityForUser))
}

func (h *Handler) handleListEntries(kind resource.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, total, err := h.catalog.ListEntries(r.Context(), kind)
		if err != nil {
			h.internalError(w, r, "list "+string(kind), err)
			return
		}
		if items == nil {
			items = []resource.Entry{}
		}
		writeList(w, items, total)
	}
}

func (h *Handler) handleGetEntry(kind resource.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := h.catalog.GetEntry(r.Context(), kind, r.PathValue("id"))
		if err != nil {
			h.writeCatalogError(w, r, kind, err)
			return
		}
		writeItem(w, http.StatusOK, entry)
	}
}

func (h *Handler) handleCreateEntry(kind resource.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req entryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}

		entry, err := h.catalog.CreateEntry(r.Context(), resource.CreateEntryInput{
			Kind:        kind,
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			h.writeCatalogError(w, r, kind, err)
			return
		}

		h.auditWrite(r, kind, "create", entry.ID)
		writeItem(w, http.StatusCreated, entry)
	}
}

func (h *Handler) handleUpdateEntry(kind resource.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req entryPatchRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}

		entry, err := h.catalog.UpdateEntry(r.Context(), kind, r.PathValue("id"), resource.UpdateEntryInput{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			h.writeCatalogError(w, r, kind, err)
			return
		}

		h.auditWrite(r, kind, "update", entry.ID)
		writeItem(w, http.StatusOK, entry)
	}
}

func (h *Handler) handleDeleteEntry(kind resource.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := h.catalog.DeleteEntry(r.Context(), kind, id, time.Now().UTC()); err != nil {
			h.writeCatalogError(w, r, kind, err)
			return
		}

		h.auditWrite(r, kind, "delete", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleListActivity returns the caller's own activity log.
func (h *Handler) handleListActivity(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	h.listActivity(w, r, caller.UserID)
}

// handleListActivityForUser returns another user's activity log.
func (h *Handler) handleListActivityForUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if _, err := h.directory.GetUserByID(r.Context(), userID); err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.internalError(w, r, "load user", err)
		return
	}
	h.listActivity(w, r, userID)
}

func (h *Handler) listActivity(w http.ResponseWriter, r *http.Request, userID string) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	items, total, err := h.catalog.ListActivityForUser(r.Context(), userID, limit)
	if err != nil {
		h.internalError(w, r, "list activity", err)
		return
	}
	if items == nil {
		items = []resource.Activity{}
	}
	writeList(w, items, total)
}

func (h *Handler) writeCatalogError(w http.ResponseWriter, r *http.Request, kind resource.Kind, err error) {
	switch {
	case errors.Is(err, resource.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", "name is required")
	case errors.Is(err, resource.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", string(kind)+" not found")
	case errors.Is(err, resource.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "name already in use")
	default:
		h.internalError(w, r, string(kind)+" operation", err)
	}
}

func (h *Handler) auditWrite(r *http.Request, kind resource.Kind, op, id string) {
	caller, _ := CallerFrom(r.Context())
	h.audit.Publish(r.Context(), event.New(event.TypeResourceWrite, caller.UserID, map[string]string{
		"kind": string(kind),
		"op":   op,
		"id":   id,
	}))
}
