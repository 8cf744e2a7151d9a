// Package handlers provides the local REST API of the desktop sync service.
package handlers

import (
	"encoding/json"
	"mime"
	"net"
	"net/http"
	"net/url"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	"github.com/youngukshin9402-code/cloud-sync-manager/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Warn("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

// statusFor maps an error code to the HTTP status reported to clients.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrInvalid, errors.ErrValidation, errors.ErrQueueItemInvalid,
		errors.ErrImageEmpty, errors.ErrImageDecode, errors.ErrBucketUnknown:
		return http.StatusBadRequest
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrContentType:
		return http.StatusUnsupportedMediaType
	case errors.ErrPermission, errors.ErrSyncAuthFailed, errors.ErrAIInvalidCredentials:
		return http.StatusForbidden
	case errors.ErrSyncInProgress:
		return http.StatusConflict
	case errors.ErrAINotHealthCheckup, errors.ErrAIInvalidResponse:
		return http.StatusUnprocessableEntity
	case errors.ErrAIRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrAIQuotaExceeded:
		return http.StatusPaymentRequired
	case errors.ErrSyncNotConfigured, errors.ErrAINotConfigured:
		return http.StatusServiceUnavailable
	case errors.ErrRemoteUnavailable, errors.ErrAITimeout, errors.ErrSyncTimeout:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError reports err as {"code", "error"}.
func writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithCode("Request failed", string(code), err)
	}
	writeJSON(w, status, map[string]interface{}{
		"code":  code,
		"error": err.Error(),
	})
}

// decodeBody reads a JSON request body. Other content types are refused.
func decodeBody(r *http.Request, dst interface{}) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errors.New(errors.ErrContentType, "request body must be application/json")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(errors.ErrInvalid, "invalid request body", err)
	}
	return nil
}

// LocalOrigin reports whether r comes from a non-browser client (no Origin
// header) or from a page served by a loopback host.
func LocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// RequireLocalOrigin rejects requests sent by pages from other origins.
func RequireLocalOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !LocalOrigin(r) {
			logging.Warn("Rejected request from foreign origin", map[string]interface{}{
				"origin": r.Header.Get("Origin"),
				"path":   r.URL.Path,
			})
			writeError(w, errors.New(errors.ErrPermission, "origin not allowed"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
