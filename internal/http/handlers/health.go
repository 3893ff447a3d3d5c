package handlers

import (
	"net/http"
)

type healthResponse struct {
	Status            string `json:"status"`
	State             string `json:"state"`
	CredentialPresent bool   `json:"credential_present"`
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	st := a.Orchestrator.Status()
	a.json(w, http.StatusOK, healthResponse{
		Status:            "ok",
		State:             string(st.State),
		CredentialPresent: st.CredentialPresent,
	})
}
