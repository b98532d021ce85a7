package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMw, s.maxBytesMw)
	r.NotFoundHandler = s.loggingMw(s.notFoundHandler())

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.health()).Methods(http.MethodGet)

	routeAPI := api.PathPrefix("/route").Subrouter()
	routeAPI.Use(s.authMw)
	routeAPI.HandleFunc("/track", s.routeTrack()).Methods(http.MethodPost)
	routeAPI.HandleFunc("/get", s.routeList()).Methods(http.MethodGet)
	routeAPI.HandleFunc("/remove", s.routeRemove()).Methods(http.MethodPost)
	routeAPI.HandleFunc("/resume", s.routeResume()).Methods(http.MethodPost)
	routeAPI.HandleFunc("/check/{routeID}", s.routeCheck()).Methods(http.MethodPost)
	routeAPI.HandleFunc("/history/{routeID}", s.routeHistory()).Methods(http.MethodGet)
	routeAPI.PathPrefix("").Handler(s.notFoundHandler())

	alertAPI := api.PathPrefix("/alert").Subrouter()
	alertAPI.Use(s.authMw)
	alertAPI.HandleFunc("/add", s.alertAdd()).Methods(http.MethodPost)
	alertAPI.HandleFunc("/get", s.alertList()).Methods(http.MethodGet)
	alertAPI.HandleFunc("/rearm", s.alertRearm()).Methods(http.MethodPost)
	alertAPI.HandleFunc("/remove", s.alertRemove()).Methods(http.MethodPost)
	alertAPI.PathPrefix("").Handler(s.notFoundHandler())

	trackerAPI := api.PathPrefix("/tracker").Subrouter()
	trackerAPI.Use(s.authMw)
	trackerAPI.HandleFunc("/start", s.trackerStart()).Methods(http.MethodPost)
	trackerAPI.HandleFunc("/stop", s.trackerStop()).Methods(http.MethodPost)
	trackerAPI.PathPrefix("").Handler(s.notFoundHandler())

	api.PathPrefix("").Handler(s.notFoundHandler())

	return r
}
