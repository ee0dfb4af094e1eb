package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"admindash/internal/service"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps a service error onto the response. Input and not-found errors
// are shown to the client; anything else is logged and answered with the
// opaque message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, opaque string) {
	var ie *service.InputError
	var nf *service.NotFoundError
	switch {
	case errors.As(err, &ie):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ie.Error()})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, errorBody{Error: nf.Error()})
	default:
		s.logger(r).Error().Err(err).Str("path", r.URL.Path).Msg(opaque)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: opaque})
	}
}
