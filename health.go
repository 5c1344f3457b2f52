package gtfsrttrigger

import (
	"net/http"
)

type healthResponse struct {
	Status        string `json:"status"`
	LastTickEpoch int64  `json:"last_tick_epoch"`
	LiveRules     int    `json:"live_rules"`
	FiredRules    int    `json:"fired_rules"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if a.Engine != nil {
		resp.LastTickEpoch = a.Engine.LastTickEpoch()
	}
	if n, err := a.Store.CountRules(r.Context()); err == nil {
		resp.LiveRules = n
	}
	if n, err := a.Store.CountClaims(r.Context()); err == nil {
		resp.FiredRules = n
	}
	writeJSON(w, http.StatusOK, resp)
}
