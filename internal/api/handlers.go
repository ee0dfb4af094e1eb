package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"admindash/internal/service"
)

func (s *Server) dashboardStats(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.DashboardStats(r.Context())
	if err != nil {
		s.fail(w, r, err, "Failed to fetch dashboard stats")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r.URL.Query())
	if err != nil {
		s.fail(w, r, err, "Failed to fetch users")
		return
	}
	out, err := s.svc.ListUsers(r.Context(), p)
	if err != nil {
		s.fail(w, r, err, "Failed to fetch users")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r.URL.Query())
	if err != nil {
		s.fail(w, r, err, "Failed to fetch queries")
		return
	}
	out, err := s.svc.ListQueries(r.Context(), p)
	if err != nil {
		s.fail(w, r, err, "Failed to fetch queries")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listErrors(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r.URL.Query())
	if err != nil {
		s.fail(w, r, err, "Failed to fetch errors")
		return
	}
	out, err := s.svc.ListErrors(r.Context(), p)
	if err != nil {
		s.fail(w, r, err, "Failed to fetch errors")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) userDetail(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := service.PositiveInt("limit", raw)
		if err != nil {
			s.fail(w, r, err, "Failed to fetch user")
			return
		}
		limit = n
	}
	out, err := s.svc.UserDetail(r.Context(), chi.URLParam(r, "userId"), limit)
	if err != nil {
		s.fail(w, r, err, "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) userQueries(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.UserQueries(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.fail(w, r, err, "Failed to fetch user queries")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) queryDetail(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.QueryDetail(r.Context(), chi.URLParam(r, "queryId"))
	if err != nil {
		s.fail(w, r, err, "Failed to fetch query details")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) errorDetail(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ErrorDetail(r.Context(), chi.URLParam(r, "errorId"))
	if err != nil {
		s.fail(w, r, err, "Failed to fetch error details")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// listParams reads the shared list query string. An ids parameter that is
// present but empty selects nothing.
func listParams(q url.Values) (service.ListParams, error) {
	p := service.ListParams{
		Search: strings.TrimSpace(q.Get("search")),
		Status: q.Get("status"),
		UserID: q.Get("userId"),
	}
	if q.Has("ids") {
		p.IDs = []string{}
		for _, id := range strings.Split(q.Get("ids"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				p.IDs = append(p.IDs, id)
			}
		}
	}
	var err error
	if raw := q.Get("page"); raw != "" {
		if p.Page, err = service.PositiveInt("page", raw); err != nil {
			return service.ListParams{}, err
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if p.Limit, err = service.PositiveInt("limit", raw); err != nil {
			return service.ListParams{}, err
		}
	}
	return p, nil
}
