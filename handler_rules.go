package gtfsrttrigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/gtfsrt-trigger/config"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/rules"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/store"
	"github.com/theoremus-urban-solutions/gtfsrt-trigger/timetable"
)

// API bundles the dependencies of the HTTP handlers.
type API struct {
	Store     *store.Store
	Timetable *timetable.Client
	Engine    *Engine
}

type createRuleRequest struct {
	FeedID     string              `json:"feed_id"`
	WebhookURL string              `json:"webhook_url,omitempty"`
	Kind       rules.ConditionKind `json:"kind"`

	TripID         string `json:"trip_id,omitempty"`
	TargetStopID   string `json:"target_stop_id,omitempty"`
	StopsBefore    int    `json:"stops_before,omitempty"`
	BoardingStopID string `json:"boarding_stop_id,omitempty"`
	Date           string `json:"date,omitempty"` // YYYYMMDD, defaults to today

	Points []rules.GeoPoint `json:"points,omitempty"`
}

func (a *API) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		setCORSHeaders(w)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		a.createRule(w, r)
	case http.MethodGet:
		a.listRules(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) handleRuleByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/rules/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodOptions:
		setCORSHeaders(w)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPut:
		a.replaceRule(w, r, id)
	case http.MethodDelete:
		a.deleteRule(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) createRule(w http.ResponseWriter, r *http.Request) {
	owner, err := resolveOwner(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rule, err := a.compileRule(r.Context(), req, owner)
	if err != nil {
		writeCompileError(w, err)
		return
	}
	if err := a.Store.PutRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (a *API) listRules(w http.ResponseWriter, r *http.Request) {
	owner, err := resolveOwner(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	list, err := a.Store.ListRulesByOwner(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	if list == nil {
		list = []rules.TriggerRule{}
	}
	writeJSON(w, http.StatusOK, map[string][]rules.TriggerRule{"rules": list})
}

// replaceRule recompiles a selection under an existing rule id. The row is
// replaced wholesale; the engine itself never updates a condition.
func (a *API) replaceRule(w http.ResponseWriter, r *http.Request, id string) {
	owner, err := resolveOwner(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	existing, err := a.Store.GetRule(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load rule")
		return
	}
	if existing.OwnerID != owner {
		writeError(w, http.StatusForbidden, "not your rule")
		return
	}
	// A fired rule's id is burned in the dedup log; a replacement under it
	// could never fire again. The caller creates a new rule instead.
	claimed, err := a.Store.Claimed(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load rule")
		return
	}
	if claimed {
		writeError(w, http.StatusConflict, "rule already fired; create a new one")
		return
	}
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rule, err := a.compileRule(r.Context(), req, owner)
	if err != nil {
		writeCompileError(w, err)
		return
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt
	if err := a.Store.PutRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (a *API) deleteRule(w http.ResponseWriter, r *http.Request, id string) {
	owner, err := resolveOwner(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	existing, err := a.Store.GetRule(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load rule")
		return
	}
	if existing.OwnerID != owner {
		writeError(w, http.StatusForbidden, "not your rule")
		return
	}
	if err := a.Store.DeleteRule(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "rule deleted"})
}

// handleConnectingTrips serves the authoring UI's boarding/alighting trip
// intersection: trips that stop at both stations in the right order.
func (a *API) handleConnectingTrips(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		setCORSHeaders(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	feedCfg, ok := config.FeedByID(q.Get("feed"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown feed")
		return
	}
	boardingStop := q.Get("boarding")
	alightingStop := q.Get("alighting")
	if boardingStop == "" || alightingStop == "" {
		writeError(w, http.StatusBadRequest, "boarding and alighting stop IDs are required")
		return
	}
	date := q.Get("date")
	if date == "" {
		date = time.Now().UTC().Format("20060102")
	}
	boarding, err := a.Timetable.ForStops(r.Context(), feedCfg, []string{boardingStop}, date)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("timetable fetch failed: %v", err))
		return
	}
	alighting, err := a.Timetable.ForStops(r.Context(), feedCfg, []string{alightingStop}, date)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("timetable fetch failed: %v", err))
		return
	}
	trips, err := rules.ConnectingTrips(boarding, alighting)
	if err != nil {
		writeCompileError(w, err)
		return
	}
	if trips == nil {
		trips = []rules.ConnectingTrip{}
	}
	writeJSON(w, http.StatusOK, map[string][]rules.ConnectingTrip{"trips": trips})
}

// compileRule resolves the selection's timetable references and runs the
// rule compiler.
func (a *API) compileRule(ctx context.Context, req createRuleRequest, owner string) (rules.TriggerRule, error) {
	feedCfg, ok := config.FeedByID(req.FeedID)
	if !ok {
		return rules.TriggerRule{}, fmt.Errorf("%w: unknown feed %q", rules.ErrInvalidSelection, req.FeedID)
	}
	sel := rules.Selection{
		FeedID:       feedCfg.ID,
		OwnerID:      owner,
		WebhookURL:   req.WebhookURL,
		Kind:         req.Kind,
		TripID:       req.TripID,
		TargetStopID: req.TargetStopID,
		StopsBefore:  req.StopsBefore,
		Points:       req.Points,
	}
	if req.Kind == rules.StopArrival {
		date := req.Date
		if date == "" {
			date = time.Now().UTC().Format("20060102")
		}
		if req.TripID == "" {
			return rules.TriggerRule{}, fmt.Errorf("%w: no trip selected", rules.ErrInvalidSelection)
		}
		tripTimes, err := a.Timetable.ForTrips(ctx, feedCfg, []string{req.TripID}, date)
		if err != nil {
			return rules.TriggerRule{}, fmt.Errorf("timetable fetch failed: %w", err)
		}
		sel.TripStopTimes = tripTimes
		if req.BoardingStopID != "" {
			boarding, err := a.Timetable.ForStops(ctx, feedCfg, []string{req.BoardingStopID}, date)
			if err != nil {
				return rules.TriggerRule{}, fmt.Errorf("timetable fetch failed: %w", err)
			}
			sel.BoardingStopTimes = boarding
		}
	}
	return rules.Compile(sel)
}

func writeCompileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rules.ErrInvalidSelection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rules.ErrMalformedSchedule):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
