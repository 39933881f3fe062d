package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/suffus/auth0/cmd/identity"
	"github.com/suffus/auth0/cmd/internal/auth/device"
	"github.com/suffus/auth0/cmd/internal/auth/session"
	"github.com/suffus/auth0/cmd/internal/event"
	"github.com/suffus/auth0/cmd/internal/resource"
)

// Handler carries the dependencies of all HTTP endpoints.
type Handler struct {
	log       *slog.Logger
	sessions  *session.Service
	devices   *device.Registry
	directory identity.Store
	catalog   resource.Store
	audit     *event.Producer
}

// NewHandler wires a handler. audit may be nil; log falls back to the default.
func NewHandler(
	log *slog.Logger,
	sessions *session.Service,
	devices *device.Registry,
	directory identity.Store,
	catalog resource.Store,
	audit *event.Producer,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:       log,
		sessions:  sessions,
		devices:   devices,
		directory: directory,
		catalog:   catalog,
		audit:     audit,
	}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealth)

	// Authentication.
	mux.HandleFunc("POST /auth/device", h.requireDeviceCredentials(h.handleVerifyDevice))
	mux.HandleFunc("POST /auth/session", h.requireDeviceCredentials(h.handleCreateSession))
	mux.HandleFunc("POST /auth/session/refresh/{session_id}", h.handleRefreshSession)
	mux.HandleFunc("POST /auth/session/revoke/{session_id}", h.requireEither(h.handleRevokeSession))
	mux.HandleFunc("POST /auth/sessions/revoke", h.requireEither(h.handleRevokeAllSessions))
	mux.HandleFunc("POST /auth/action/{name}", h.requireFreshCode(h.handleAction))

	// Device enrollment.
	mux.HandleFunc("GET /auth/devices", h.requireSession(h.handleListDevices))
	mux.HandleFunc("POST /auth/devices", h.requireFreshCode(h.handleRegisterDevice))
	mux.HandleFunc("DELETE /auth/devices/{id}", h.requireFreshCode(h.handleDeregisterDevice))

	h.registerCatalog(mux)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVerifyDevice answers "who owns this code" without creating a session.
// The middleware already verified the code; this just reports the resolution.
func (h *Handler) handleVerifyDevice(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	user, err := h.directory.GetUserByID(r.Context(), caller.UserID)
	if err != nil {
		h.internalError(w, r, "load user", err)
		return
	}
	dev, err := h.deviceByID(r, caller.UserID, caller.DeviceID)
	if err != nil {
		h.internalError(w, r, "load device", err)
		return
	}

	// Auth endpoints answer with bare top-level objects, not the {"item"}
	// envelope: existing clients read access_token and friends at the top
	// level.
	writeJSON(w, http.StatusOK, verifyResponse{
		User:   toUserResponse(user),
		Device: toDeviceResponse(dev),
	})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	issued, err := h.sessions.IssueSession(r.Context(), caller.UserID, caller.DeviceID)
	if err != nil {
		h.internalError(w, r, "issue session", err)
		return
	}

	resp := toSessionResponse(issued)
	if user, err := h.directory.GetUserByID(r.Context(), caller.UserID); err == nil {
		u := toUserResponse(user)
		resp.User = &u
	}
	if dev, err := h.deviceByID(r, caller.UserID, caller.DeviceID); err == nil {
		d := toDeviceResponse(dev)
		resp.Device = &d
	}

	h.audit.Publish(r.Context(), event.New(event.TypeSessionIssued, caller.UserID, map[string]string{
		"session_id": issued.Session.ID,
		"device_id":  caller.DeviceID,
	}))
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "refresh_token is required")
		return
	}

	issued, err := h.sessions.Refresh(r.Context(), sessionID, req.RefreshToken)
	if err != nil {
		// A wrong session id and a wrong token are indistinguishable on the
		// wire; both read as a bad refresh credential.
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_refresh", "invalid refresh token")
			return
		}
		h.writeSessionError(w, r, err)
		return
	}

	h.audit.Publish(r.Context(), event.New(event.TypeSessionRefreshed, issued.Session.UserID, map[string]string{
		"session_id": issued.Session.ID,
	}))
	writeJSON(w, http.StatusOK, toSessionResponse(issued))
}

func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	sessionID := r.PathValue("session_id")

	// Only the session's owner may revoke it.
	row, err := h.sessions.SessionRow(r.Context(), sessionID)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	if row.UserID != caller.UserID {
		writeError(w, http.StatusForbidden, "forbidden", "not your session")
		return
	}

	if err := h.sessions.RevokeSession(r.Context(), sessionID, "logout"); err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	h.audit.Publish(r.Context(), event.New(event.TypeSessionRevoked, caller.UserID, map[string]string{
		"session_id": sessionID,
	}))
	writeItem(w, http.StatusOK, revokedResponse{Revoked: 1})
}

func (h *Handler) handleRevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	n, err := h.sessions.RevokeAllForUser(r.Context(), caller.UserID, "revoke_all")
	if err != nil {
		h.internalError(w, r, "revoke sessions", err)
		return
	}

	h.audit.Publish(r.Context(), event.New(event.TypeSessionRevoked, caller.UserID, map[string]string{
		"scope": "all",
	}))
	writeItem(w, http.StatusOK, revokedResponse{Revoked: n})
}

// handleAction performs a named action from the catalog and records it in the
// user activity log. Always requires a fresh device code.
func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	name := r.PathValue("name")

	var req actionRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}

	entry, err := h.catalog.GetEntryByName(r.Context(), resource.KindAction, name)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown_action", "no such action")
			return
		}
		h.internalError(w, r, "load action", err)
		return
	}

	location, ok := h.lookupCatalogName(w, r, resource.KindLocation, req.Location, "unknown_location")
	if !ok {
		return
	}
	status, ok := h.lookupCatalogName(w, r, resource.KindUserStatus, req.Status, "unknown_status")
	if !ok {
		return
	}

	activity := resource.Activity{
		UserID:    caller.UserID,
		Action:    entry.Name,
		DeviceID:  caller.DeviceID,
		Location:  location,
		Status:    status,
		Note:      req.Note,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.catalog.RecordActivity(r.Context(), activity); err != nil {
		h.internalError(w, r, "record activity", err)
		return
	}

	h.audit.Publish(r.Context(), event.New(event.TypeActionPerformed, caller.UserID, map[string]string{
		"action":    entry.Name,
		"device_id": caller.DeviceID,
	}))
	writeItem(w, http.StatusOK, activity)
}

func (h *Handler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	devices, err := h.directory.ListDevicesForUser(r.Context(), caller.UserID)
	if err != nil {
		h.internalError(w, r, "list devices", err)
		return
	}

	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceResponse(d))
	}
	writeList(w, out, len(out))
}

func (h *Handler) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())

	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	dev, err := h.directory.RegisterDevice(r.Context(), identity.RegisterDeviceInput{
		UserID:     caller.UserID,
		Type:       identity.NormalizeDeviceType(req.Type),
		Identifier: req.Identifier,
		Name:       req.Name,
	})
	if err != nil {
		switch {
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "bad_request", "type and identifier are required")
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "conflict", "device already enrolled")
		case identity.IsNotFound(err):
			writeError(w, http.StatusNotFound, "not_found", "user not found")
		default:
			h.internalError(w, r, "register device", err)
		}
		return
	}

	writeItem(w, http.StatusCreated, toDeviceResponse(dev))
}

func (h *Handler) handleDeregisterDevice(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	deviceID := r.PathValue("id")

	dev, err := h.deviceByID(r, caller.UserID, deviceID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "device not found")
			return
		}
		h.internalError(w, r, "load device", err)
		return
	}
	if dev.UserID != caller.UserID {
		writeError(w, http.StatusNotFound, "not_found", "device not found")
		return
	}

	if err := h.directory.DeactivateDevice(r.Context(), deviceID, time.Now().UTC()); err != nil {
		h.internalError(w, r, "deactivate device", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookupCatalogName resolves an optional catalog reference to its canonical
// name. An empty name passes through; an unknown one writes a 400 and returns
// false.
func (h *Handler) lookupCatalogName(w http.ResponseWriter, r *http.Request, kind resource.Kind, name, errCode string) (string, bool) {
	if name == "" {
		return "", true
	}
	entry, err := h.catalog.GetEntryByName(r.Context(), kind, name)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			writeError(w, http.StatusBadRequest, errCode, "no such "+string(kind))
			return "", false
		}
		h.internalError(w, r, "load "+string(kind), err)
		return "", false
	}
	return entry.Name, true
}

// deviceByID finds one of the user's devices by id.
func (h *Handler) deviceByID(r *http.Request, userID, deviceID string) (identity.Device, error) {
	devices, err := h.directory.ListDevicesForUser(r.Context(), userID)
	if err != nil {
		return identity.Device{}, err
	}
	for _, d := range devices {
		if d.ID == deviceID {
			return d, nil
		}
	}
	return identity.Device{}, identity.NotFoundError{Op: "api.deviceByID", Resource: "device"}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, what string, err error) {
	h.log.ErrorContext(r.Context(), what+" failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}
