package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"flighttracker/internal/database"
	"flighttracker/internal/model"
	"flighttracker/internal/tracker"
)

func (s Server) writeJsonResponse(w http.ResponseWriter, response any, statusCode int) {
	if resp, err := json.Marshal(response); err != nil {
		s.Logger.Errorf("Error encoding response: %+v, err: %v", response, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	} else {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(statusCode)
		if _, err = w.Write(resp); err != nil {
			s.Logger.Errorf("Error writing JSON response: %s, err: %v", resp, err)
		}
	}
}

// writeStoreError maps the error taxonomy onto HTTP statuses: validation
// failures carry their message at 400, unknown ids are 404, lost state
// races are 409, anything else is a logged 500.
func (s Server) writeStoreError(w http.ResponseWriter, tag string, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		s.Logger.Debugf("%s: Validation failed, err: %v", tag, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, database.ErrNotFound):
		s.Logger.Debugf("%s: Not found, err: %v", tag, err)
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, database.ErrAlertTriggered), errors.Is(err, tracker.ErrCheckInFlight):
		s.Logger.Debugf("%s: Conflict, err: %v", tag, err)
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	default:
		s.Logger.Errorf("%s: Internal error: %v", tag, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s Server) notFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc := getTraceContext(r.Context())
		s.Logger.Debugf("notFoundHandler: Requested resource not found: %s, TraceID: %s", r.URL.Path, tc.traceID)
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	}
}
