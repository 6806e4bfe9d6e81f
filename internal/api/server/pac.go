package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rennerdo30/gateway-switcher/internal/pac"
)

// handlePAC serves the installed PAC script so the OS can fetch it over
// HTTP instead of file://.
func (a *API) handlePAC(w http.ResponseWriter, r *http.Request) {
	if a.pac == nil || !a.pac.Exists() {
		http.Error(w, "No PAC file installed", http.StatusNotFound)
		return
	}
	script, err := a.pac.Read()
	if err != nil {
		a.logger.Warn("failed to read PAC file", "error", err)
		http.Error(w, "Failed to read PAC file", http.StatusInternalServerError)
		return
	}
	writePAC(w, script)
}

// handleProfilePAC renders the script a profile would install.
func (a *API) handleProfilePAC(w http.ResponseWriter, r *http.Request) {
	script, err := a.manager.PAC(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, errorStatus(err), err.Error())
		return
	}
	writePAC(w, script)
}

func writePAC(w http.ResponseWriter, script string) {
	w.Header().Set("Content-Type", pac.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="proxy.pac"`)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(script))
}
