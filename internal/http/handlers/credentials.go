package handlers

import (
	"net/http"

	"adforge/internal/domain"
)

type credentialRequest struct {
	APIKey string `json:"api_key" validate:"required,max=512"`
}

type credentialResponse struct {
	Present bool `json:"present"`
}

// CredentialStatus re-checks the gate and reports whether a key is selected.
func (a *App) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	present, err := a.Orchestrator.RefreshCredential(r.Context())
	if err != nil {
		a.requestLogger(r).Error().Err(err).Msg("credential check failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to check credential")
		return
	}
	a.json(w, http.StatusOK, credentialResponse{Present: present})
}

func (a *App) CredentialSelect(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.Orchestrator.SelectCredential(r.Context(), req.APIKey); err != nil {
		if _, ok := domain.AsFailure(err); ok {
			a.failure(w, r, err)
			return
		}
		a.requestLogger(r).Error().Err(err).Msg("credential selection failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store credential")
		return
	}
	a.json(w, http.StatusOK, credentialResponse{Present: a.Orchestrator.CredentialPresent()})
}

func (a *App) CredentialClear(w http.ResponseWriter, r *http.Request) {
	if a.Credentials != nil {
		if err := a.Credentials.Clear(r.Context()); err != nil {
			a.requestLogger(r).Error().Err(err).Msg("credential reset failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to clear credential")
			return
		}
	}
	a.Orchestrator.ForgetCredential()
	w.WriteHeader(http.StatusNoContent)
}
