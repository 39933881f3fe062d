package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/suffus/auth0/cmd/identity"
	"github.com/suffus/auth0/cmd/internal/auth/device"
	"github.com/suffus/auth0/cmd/internal/auth/session"
	"github.com/suffus/auth0/cmd/internal/event"
)

// Caller is the authenticated principal attached to the request context.
type Caller struct {
	UserID   string
	DeviceID string
	// SessionID is set when the caller authenticated with a bearer token.
	SessionID string
	// Fresh is true when the caller authenticated with a device code verified
	// on this very request.
	Fresh bool
}

type callerKey struct{}

// CallerFrom returns the authenticated caller, if any.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

func withCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// requireSession guards read endpoints: a valid bearer access token whose
// embedded counter matches the live session.
func (h *Handler) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := h.authenticateBearer(w, r)
		if !ok {
			return
		}
		next(w, r.WithContext(withCaller(r.Context(), caller)))
	}
}

// requireFreshCode guards write endpoints: a device code verified on this
// request. A bearer token is rejected outright, valid or not.
func (h *Handler) requireFreshCode(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			h.audit.Publish(r.Context(), event.New(event.TypeAccessDenied, "", map[string]string{
				"reason": "bearer_on_write",
				"path":   r.URL.Path,
			}))
			writeError(w, http.StatusUnauthorized, "device_code_required",
				"this operation requires a fresh device code, not a session token")
			return
		}

		caller, ok := h.authenticateDeviceCode(w, r)
		if !ok {
			return
		}
		next(w, r.WithContext(withCaller(r.Context(), caller)))
	}
}

// requireDeviceCredentials guards the authentication endpoints themselves.
// Credentials arrive either as "Authorization: <device_type>:<code>" or as a
// JSON body {"device_type": ..., "auth_code": ...}. A bearer token is
// rejected outright, same as requireFreshCode.
func (h *Handler) requireDeviceCredentials(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			h.audit.Publish(r.Context(), event.New(event.TypeAccessDenied, "", map[string]string{
				"reason": "bearer_on_write",
				"path":   r.URL.Path,
			}))
			writeError(w, http.StatusUnauthorized, "device_code_required",
				"this operation requires a fresh device code, not a session token")
			return
		}

		var caller Caller
		var ok bool
		if authz != "" {
			caller, ok = h.authenticateDeviceCode(w, r)
		} else {
			var req deviceCredentialsRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusUnauthorized, "missing_credentials",
					"expected Authorization: <device_type>:<code> or a device_type/auth_code body")
				return
			}
			if req.DeviceType == "" || req.AuthCode == "" {
				writeError(w, http.StatusUnauthorized, "missing_credentials",
					"device_type and auth_code are required")
				return
			}
			caller, ok = h.resolveDeviceCode(w, r, identity.NormalizeDeviceType(req.DeviceType), req.AuthCode)
		}
		if !ok {
			return
		}
		next(w, r.WithContext(withCaller(r.Context(), caller)))
	}
}

// requireEither guards endpoints where either credential is acceptable.
// A bearer header is routed to session validation, anything else to device
// code verification.
func (h *Handler) requireEither(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var caller Caller
		var ok bool
		if strings.HasPrefix(strings.ToLower(r.Header.Get("Authorization")), "bearer ") {
			caller, ok = h.authenticateBearer(w, r)
		} else {
			caller, ok = h.authenticateDeviceCode(w, r)
		}
		if !ok {
			return
		}
		next(w, r.WithContext(withCaller(r.Context(), caller)))
	}
}

func (h *Handler) authenticateBearer(w http.ResponseWriter, r *http.Request) (Caller, bool) {
	tok, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token", "missing bearer token")
		return Caller{}, false
	}

	p, err := h.sessions.ValidateAccessToken(r.Context(), tok)
	if err != nil {
		h.writeSessionError(w, r, err)
		return Caller{}, false
	}

	return Caller{
		UserID:    p.UserID,
		DeviceID:  p.DeviceID,
		SessionID: p.SessionID,
	}, true
}

// writeSessionError maps session validation errors onto the wire. The
// "count mismatch" body text is a client contract: callers match on the
// literal to trigger refresh-and-retry, so both refresh-recoverable failures
// (stale counter, expired token) carry it.
func (h *Handler) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrCounterMismatch):
		writeError(w, http.StatusUnauthorized, "count_mismatch",
			"access token is stale (count mismatch), refresh and retry")
	case errors.Is(err, session.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token_expired",
			"access token expired (count mismatch), refresh and retry")
	case errors.Is(err, session.ErrSessionRevoked):
		writeError(w, http.StatusUnauthorized, "session_revoked", "session has been revoked")
	case errors.Is(err, session.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "session_expired", "session has expired")
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid access token")
	case errors.Is(err, session.ErrInvalidRefresh):
		writeError(w, http.StatusUnauthorized, "invalid_refresh", "invalid refresh token")
	default:
		h.log.ErrorContext(r.Context(), "session validation failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// authenticateDeviceCode verifies "Authorization: <device_type>:<code>" and
// resolves the device to its owner.
func (h *Handler) authenticateDeviceCode(w http.ResponseWriter, r *http.Request) (Caller, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		writeError(w, http.StatusUnauthorized, "missing_credentials",
			"expected Authorization: <device_type>:<code>")
		return Caller{}, false
	}

	typePart, code, ok := strings.Cut(authz, ":")
	if !ok || code == "" {
		writeError(w, http.StatusUnauthorized, "malformed_credentials",
			"expected Authorization: <device_type>:<code>")
		return Caller{}, false
	}
	return h.resolveDeviceCode(w, r, identity.NormalizeDeviceType(typePart), code)
}

// resolveDeviceCode verifies a code against its verifier and maps the result
// to an enrolled device and its active owner.
func (h *Handler) resolveDeviceCode(w http.ResponseWriter, r *http.Request, devType identity.DeviceType, code string) (Caller, bool) {
	ctx := r.Context()

	v, err := h.devices.Verify(ctx, devType, code)
	if err != nil {
		h.writeVerifyError(w, r, devType, err)
		return Caller{}, false
	}

	dev, err := h.directory.GetDeviceByTypeAndIdentifier(ctx, v.Type, v.Identifier)
	if err != nil {
		if identity.IsNotFound(err) {
			h.auditRejected(ctx, devType, "device_not_enrolled")
			writeError(w, http.StatusUnauthorized, "unknown_device", "device is not enrolled")
			return Caller{}, false
		}
		h.log.ErrorContext(ctx, "device lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return Caller{}, false
	}

	user, err := h.directory.GetUserByID(ctx, dev.UserID)
	if err != nil {
		h.log.ErrorContext(ctx, "user lookup failed", slog.String("device_id", dev.ID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return Caller{}, false
	}
	if !user.Active {
		h.auditRejected(ctx, devType, "user_inactive")
		writeError(w, http.StatusForbidden, "user_inactive", "user account is inactive")
		return Caller{}, false
	}

	if err := h.directory.TouchDevice(ctx, dev.ID, time.Now().UTC()); err != nil {
		h.log.WarnContext(ctx, "touch device failed", slog.String("device_id", dev.ID), slog.Any("error", err))
	}

	h.audit.Publish(ctx, event.New(event.TypeDeviceVerified, user.ID, map[string]string{
		"device_id":   dev.ID,
		"device_type": string(dev.Type),
	}))
	return Caller{UserID: user.ID, DeviceID: dev.ID, Fresh: true}, true
}

func (h *Handler) writeVerifyError(w http.ResponseWriter, r *http.Request, devType identity.DeviceType, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, device.ErrUnknownDeviceType):
		writeError(w, http.StatusBadRequest, "unknown_device_type", "unsupported device type")
	case errors.Is(err, device.ErrInvalidCode):
		h.auditRejected(ctx, devType, "invalid_code")
		writeError(w, http.StatusUnauthorized, "invalid_code", "device code verification failed")
	case errors.Is(err, device.ErrVerifierUnavailable):
		h.log.ErrorContext(ctx, "verifier unavailable", slog.String("device_type", string(devType)), slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, "verifier_unavailable", "verification service unavailable, try again")
	default:
		h.log.ErrorContext(ctx, "device verification failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (h *Handler) auditRejected(ctx context.Context, devType identity.DeviceType, reason string) {
	h.audit.Publish(ctx, event.New(event.TypeDeviceRejected, "", map[string]string{
		"device_type": string(devType),
		"reason":      reason,
	}))
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(authz) <= len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(authz[len(prefix):])
	return tok, tok != ""
}
