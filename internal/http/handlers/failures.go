package handlers

import (
	"net/http"

	"adforge/internal/domain"
)

// StatusClientClosedRequest is the non-standard status used when the caller
// went away before the cycle finished.
const StatusClientClosedRequest = 499

// StatusForKind maps a failure kind onto the HTTP status returned to callers.
func StatusForKind(kind domain.FailureKind) int {
	switch kind {
	case domain.KindNeedsCredential:
		return http.StatusPreconditionRequired
	case domain.KindNeedsConfirmation, domain.KindBusy:
		return http.StatusConflict
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindCredentialRejected:
		return http.StatusUnauthorized
	case domain.KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusBadGateway
	}
}

// failure writes err as the error body. Non-failure errors are reported as
// provider errors.
func (a *App) failure(w http.ResponseWriter, r *http.Request, err error) {
	f := domain.ToFailure(err)
	status := StatusForKind(f.Kind)
	log := a.requestLogger(r)
	evt := log.Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Error().Err(f.Err)
	}
	evt.Str("kind", string(f.Kind)).Int("status", status).Msg(f.Message)
	a.json(w, status, map[string]errorBody{"error": {
		Code:                 string(f.Kind),
		Message:              f.Message,
		InvalidateCredential: f.InvalidateCredential,
	}})
}
