package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"flighttracker/internal/client"
	"flighttracker/internal/model"
	"flighttracker/internal/tracker"
)

func (s Server) routeTrack() http.HandlerFunc {
	type request struct {
		Origin        string `json:"origin"`
		Destination   string `json:"destination"`
		DepartureDate string `json:"departure_date"`
		ReturnDate    string `json:"return_date"`
		SeatClass     string `json:"seat_class"`
		CheckInterval string `json:"check_interval"`
	}
	type response struct {
		RouteID    string           `json:"route_id"`
		Price      *float64         `json:"price,omitempty"`
		PriceLevel model.PriceLevel `json:"price_level,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("routeTrack: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		interval, err := time.ParseDuration(req.CheckInterval)
		if err != nil {
			s.Logger.Debugf("routeTrack: Bad check interval: %#v, err: %v", req.CheckInterval, err)
			http.Error(w, "invalid check_interval, expected a duration like \"30m\"", http.StatusBadRequest)
			return
		}

		routeID, err := s.DB.RouteInsert(r.Context(), model.TrackedRoute{
			Origin:        req.Origin,
			Destination:   req.Destination,
			DepartureDate: req.DepartureDate,
			ReturnDate:    req.ReturnDate,
			SeatClass:     req.SeatClass,
			CheckInterval: interval,
		})
		if err != nil {
			s.writeStoreError(w, "routeTrack", err)
			return
		}
		s.Logger.Infof("routeTrack: Now tracking route %s -> %s on %s, ID: %s",
			req.Origin, req.Destination, req.DepartureDate, routeID)

		// The first check runs inline so the caller gets the current price
		// back. A failure here is not fatal, the scheduler retries later.
		resp := response{RouteID: routeID}
		if pr, err := s.Tracker.CheckNow(r.Context(), routeID); err != nil {
			s.Logger.Errorf("routeTrack: Initial check failed for route %s, err: %v", routeID, err)
		} else {
			resp.Price = &pr.Price
			resp.PriceLevel = pr.Level
		}
		s.writeJsonResponse(w, resp, http.StatusOK)
	}
}

func (s Server) routeList() http.HandlerFunc {
	type routeResponse struct {
		RouteID string `json:"route_id"`
		model.TrackedRoute
	}
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
		rs, err := s.DB.RoutesFindAll(r.Context(), activeOnly)
		if err != nil {
			s.writeStoreError(w, "routeList", err)
			return
		}
		resp := make([]routeResponse, 0, len(rs))
		for _, rt := range rs {
			resp = append(resp, routeResponse{RouteID: rt.ID.Hex(), TrackedRoute: rt})
		}
		s.writeJsonResponse(w, resp, http.StatusOK)
	}
}

func (s Server) routeSetActive(tag string, active bool) http.HandlerFunc {
	type request struct {
		RouteID string `json:"route_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("%s: Error decoding JSON, err: %v", tag, err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if err := s.DB.RouteSetActive(r.Context(), req.RouteID, active); err != nil {
			s.writeStoreError(w, tag, err)
			return
		}
		s.Logger.Infof("%s: Route %s active set to %v", tag, req.RouteID, active)
		s.writeJsonResponse(w, map[string]bool{"success": true}, http.StatusOK)
	}
}

func (s Server) routeRemove() http.HandlerFunc {
	return s.routeSetActive("routeRemove", false)
}

func (s Server) routeResume() http.HandlerFunc {
	return s.routeSetActive("routeResume", true)
}

func (s Server) routeCheck() http.HandlerFunc {
	type errorResponse struct {
		Error          string `json:"error"`
		Classification string `json:"classification"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		routeID := mux.Vars(r)["routeID"]
		pr, err := s.Tracker.CheckNow(r.Context(), routeID)
		if err != nil {
			var classification string
			switch {
			case errors.Is(err, tracker.ErrRateLimited):
				classification = "rate_limited"
			case errors.Is(err, client.ErrQuoteTransient):
				classification = "transient"
			case errors.Is(err, client.ErrQuotePermanent):
				classification = "permanent"
			default:
				s.writeStoreError(w, "routeCheck", err)
				return
			}
			s.Logger.Errorf("routeCheck: Check failed for route %s, classification: %s, err: %v",
				routeID, classification, err)
			s.writeJsonResponse(w, errorResponse{
				Error:          "price fetch failed",
				Classification: classification,
			}, http.StatusBadGateway)
			return
		}
		s.writeJsonResponse(w, pr, http.StatusOK)
	}
}

func (s Server) routeHistory() http.HandlerFunc {
	type response struct {
		Records []model.PriceRecord `json:"records"`
		Stats   model.PriceStats    `json:"stats"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		routeID := mux.Vars(r)["routeID"]
		onDate := r.URL.Query().Get("date")

		days := 30
		if d := r.URL.Query().Get("days"); d != "" {
			var err error
			if days, err = strconv.Atoi(d); err != nil || days <= 0 {
				s.Logger.Debugf("routeHistory: Bad days param: %#v", d)
				http.Error(w, "invalid days, expected a positive integer", http.StatusBadRequest)
				return
			}
		}

		records, stats, err := s.DB.History(r.Context(), routeID, onDate, time.Duration(days)*24*time.Hour)
		if err != nil {
			s.writeStoreError(w, "routeHistory", err)
			return
		}
		s.writeJsonResponse(w, response{Records: records, Stats: stats}, http.StatusOK)
	}
}
