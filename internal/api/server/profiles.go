package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rennerdo30/gateway-switcher/internal/pac"
	"github.com/rennerdo30/gateway-switcher/internal/profile"
)

const redacted = "********"

type profileSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	IsDefault    bool      `json:"is_default"`
	Active       bool      `json:"active"`
	Adapter      string    `json:"adapter"`
	ProxyEnabled bool      `json:"proxy_enabled"`
	Rules        int       `json:"rules"`
	LastModified time.Time `json:"last_modified"`
}

type matchResponse struct {
	Domain  string             `json:"domain"`
	Matched bool               `json:"matched"`
	Rule    *profile.RouteRule `json:"rule,omitempty"`
	Gateway string             `json:"gateway,omitempty"`
	Proxy   string             `json:"proxy"`
}

type applyResponse struct {
	ProfileID   string `json:"profile_id"`
	ProfileName string `json:"profile_name"`
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	HistoryID   int64  `json:"history_id"`
}

// redact hides stored proxy credentials.
func redact(p profile.NetworkProfile) profile.NetworkProfile {
	if p.ProxySettings.Password != "" {
		p.ProxySettings.Password = redacted
	}
	return p
}

func (a *API) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	active, _ := a.manager.Active()
	profiles := a.manager.Profiles()

	response := make([]profileSummary, 0, len(profiles))
	for _, p := range profiles {
		response = append(response, profileSummary{
			ID:           p.ID,
			Name:         p.Name,
			IsDefault:    p.IsDefault,
			Active:       p.ID == active.ID,
			Adapter:      p.NetworkSettings.AdapterName,
			ProxyEnabled: p.ProxySettings.Enabled,
			Rules:        len(p.RouteRules),
			LastModified: p.LastModified.Time,
		})
	}
	a.writeJSON(w, http.StatusOK, response)
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := a.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, errorStatus(err), err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, redact(p))
}

func (a *API) handleApplyProfile(w http.ResponseWriter, r *http.Request) {
	p, err := a.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, errorStatus(err), err.Error())
		return
	}

	start := time.Now()
	res := a.manager.Apply(r.Context(), p.ID)
	id := a.history.Add(ApplyEntry{
		Timestamp:   start,
		ProfileID:   p.ID,
		ProfileName: p.Name,
		Success:     res.Success,
		Message:     res.Message,
		Duration:    time.Since(start).Milliseconds(),
		ClientIP:    r.RemoteAddr,
	})

	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	a.writeJSON(w, status, applyResponse{
		ProfileID:   p.ID,
		ProfileName: p.Name,
		Success:     res.Success,
		Message:     res.Message,
		HistoryID:   id,
	})
}

func (a *API) handleMatch(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		a.writeError(w, http.StatusBadRequest, "domain parameter is required")
		return
	}

	p, err := a.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, errorStatus(err), err.Error())
		return
	}

	response := matchResponse{
		Domain: domain,
		Proxy:  defaultAction(p.ProxySettings),
	}
	if rule, ok := p.FirstMatch(domain); ok {
		response.Matched = true
		response.Rule = &rule
		if rule.HasGatewayOverride() {
			response.Gateway = rule.CustomGateway
		}
		if action, ok := pac.Action(rule); ok {
			response.Proxy = action
		}
	}
	a.writeJSON(w, http.StatusOK, response)
}

func defaultAction(s profile.ProxySettings) string {
	return pac.Default{Enabled: s.Enabled, Server: s.ProxyServer, Port: s.ProxyPort}.Action()
}

func (a *API) handleBypass(w http.ResponseWriter, r *http.Request) {
	list, err := a.manager.Bypass(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, errorStatus(err), err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"bypass_list": list})
}
