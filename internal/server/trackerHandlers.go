package server

import "net/http"

func (s Server) trackerStart() http.HandlerFunc {
	type response struct {
		Running bool `json:"running"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.Tracker.Start()
		s.writeJsonResponse(w, response{Running: s.Tracker.Running()}, http.StatusOK)
	}
}

func (s Server) trackerStop() http.HandlerFunc {
	type response struct {
		Running bool `json:"running"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.Tracker.Stop()
		s.writeJsonResponse(w, response{Running: s.Tracker.Running()}, http.StatusOK)
	}
}

func (s Server) health() http.HandlerFunc {
	type response struct {
		Status       string `json:"status"`
		Running      bool   `json:"tracker_running"`
		ActiveRoutes int    `json:"active_routes"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := response{Status: "ok", Running: s.Tracker.Running()}
		if rs, err := s.DB.RoutesFindAll(r.Context(), true); err != nil {
			s.Logger.Errorf("health: Error counting active routes, err: %v", err)
			resp.Status = "degraded"
		} else {
			resp.ActiveRoutes = len(rs)
		}
		s.writeJsonResponse(w, resp, http.StatusOK)
	}
}
