package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flighttracker/internal/database"
	"flighttracker/internal/model"
)

func (s Server) alertAdd() http.HandlerFunc {
	type request struct {
		RouteID     string  `json:"route_id"`
		TargetPrice float64 `json:"target_price"`
		WebhookURL  string  `json:"webhook_url"`
		Email       string  `json:"email"`
	}
	type response struct {
		AlertID     string `json:"alert_id"`
		WillTrigger bool   `json:"will_trigger"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("alertAdd: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		routeID, err := primitive.ObjectIDFromHex(req.RouteID)
		if err != nil {
			s.Logger.Debugf("alertAdd: Bad route ID: %#v, err: %v", req.RouteID, err)
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}

		alertID, err := s.DB.AlertInsert(r.Context(), model.PriceAlert{
			RouteID:     routeID,
			TargetPrice: req.TargetPrice,
			WebhookURL:  req.WebhookURL,
			Email:       req.Email,
		})
		if err != nil {
			s.writeStoreError(w, "alertAdd", err)
			return
		}
		s.Logger.Infof("alertAdd: Alert %s added for route %s, target: %.0f", alertID, req.RouteID, req.TargetPrice)

		// will_trigger tells the caller whether the latest known price already
		// satisfies the threshold, so they know a notification is imminent.
		resp := response{AlertID: alertID}
		if pr, err := s.DB.PriceRecordFindLatest(r.Context(), routeID); err == nil {
			resp.WillTrigger = pr.Price <= req.TargetPrice
		} else if !errors.Is(err, database.ErrNotFound) {
			s.Logger.Errorf("alertAdd: Error finding latest price for route %s, err: %v", req.RouteID, err)
		}
		s.writeJsonResponse(w, resp, http.StatusOK)
	}
}

func (s Server) alertList() http.HandlerFunc {
	type alertResponse struct {
		AlertID string `json:"alert_id"`
		RouteID string `json:"route_id"`
		model.PriceAlert
	}
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
		as, err := s.DB.AlertsFindAll(r.Context(), activeOnly)
		if err != nil {
			s.writeStoreError(w, "alertList", err)
			return
		}
		resp := make([]alertResponse, 0, len(as))
		for _, a := range as {
			resp = append(resp, alertResponse{AlertID: a.ID.Hex(), RouteID: a.RouteID.Hex(), PriceAlert: a})
		}
		s.writeJsonResponse(w, resp, http.StatusOK)
	}
}

func (s Server) alertRearm() http.HandlerFunc {
	type request struct {
		AlertID string `json:"alert_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("alertRearm: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if err := s.DB.AlertRearm(r.Context(), req.AlertID); err != nil {
			s.writeStoreError(w, "alertRearm", err)
			return
		}
		s.Logger.Infof("alertRearm: Alert %s re-armed", req.AlertID)
		s.writeJsonResponse(w, map[string]bool{"success": true}, http.StatusOK)
	}
}

func (s Server) alertRemove() http.HandlerFunc {
	type request struct {
		AlertID string `json:"alert_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("alertRemove: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if err := s.DB.AlertSetActive(r.Context(), req.AlertID, false); err != nil {
			s.writeStoreError(w, "alertRemove", err)
			return
		}
		s.Logger.Infof("alertRemove: Alert %s deactivated", req.AlertID)
		s.writeJsonResponse(w, map[string]bool{"success": true}, http.StatusOK)
	}
}
