package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"yieldfetcher/internal/auth"
	"yieldfetcher/internal/match"
	"yieldfetcher/internal/opportunity"
	"yieldfetcher/internal/storage"
)

type listResponse struct {
	Success   bool                      `json:"success"`
	Data      []opportunity.Opportunity `json:"data"`
	Count     int                       `json:"count"`
	Timestamp time.Time                 `json:"timestamp"`
}

type userResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	// Saved is false when Data is the default profile.
	Saved     bool      `json:"saved"`
	Timestamp time.Time `json:"timestamp"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  bool      `json:"database"`
}

type errorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type server struct {
	store storage.Gateway
	log   *zap.Logger
	now   func() time.Time
}

func newServer(store storage.Gateway, log *zap.Logger) *server {
	if log == nil {
		log = zap.NewNop()
	}
	return &server{store: store, log: log.Named("api"), now: func() time.Time { return time.Now().UTC() }}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/earn/opportunities", s.handleOpportunities)
	mux.HandleFunc("POST /api/earn/opportunities/match", s.handleMatch)
	mux.HandleFunc("GET /api/user", s.handleGetUser)
	mux.HandleFunc("POST /api/user", s.handleSaveUser)
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ok := s.store.TestConnection(r.Context())
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, healthResponse{Status: "ok", Timestamp: s.now(), Database: ok})
}

func (s *server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	opps, err := s.store.GetAllOpportunities(r.Context())
	if err != nil {
		s.log.Error("listing opportunities failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch opportunities", nil)
		return
	}
	match.SortByAPR(opps)
	s.writeList(w, opps)
}

func (s *server) handleMatch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	opps, err := s.store.GetAllOpportunities(r.Context())
	if err != nil {
		s.log.Error("matching opportunities failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	matched := match.Match(opps, req)
	match.SortByAPR(matched)
	s.writeList(w, matched)
}

func (s *server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authorize(w, r)
	if !ok {
		return
	}
	um, err := s.store.GetUserMatch(r.Context(), userID)
	if err != nil {
		s.log.Error("loading user match failed", zap.String("user", userID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch user match configuration", nil)
		return
	}
	if um == nil {
		s.writeJSON(w, http.StatusOK, userResponse{Success: true, Data: match.DefaultRequest(), Timestamp: s.now()})
		return
	}
	s.writeJSON(w, http.StatusOK, userResponse{Success: true, Data: um, Saved: true, Timestamp: s.now()})
}

func (s *server) handleSaveUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authorize(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	um, err := s.store.UpsertUserMatch(r.Context(), userID, req)
	if err != nil {
		s.log.Error("saving user match failed", zap.String("user", userID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to save user match configuration", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, userResponse{Success: true, Data: um, Saved: true, Timestamp: s.now()})
}

func (s *server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	s.writeError(w, http.StatusNotFound, "Endpoint not found", nil)
}

func (s *server) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserID(r.Header.Get("Authorization"))
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized - Valid JWT token required", nil)
		return "", false
	}
	return userID, true
}

// decodeRequest reads and validates a match request body, answering 400 on
// any failure.
func (s *server) decodeRequest(w http.ResponseWriter, r *http.Request) (match.Request, bool) {
	var req match.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return match.Request{}, false
	}
	if err := req.Validate(); err != nil {
		var verrs opportunity.ValidationErrors
		if errors.As(err, &verrs) {
			s.writeError(w, http.StatusBadRequest, "Invalid request body", verrs)
		} else {
			s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		}
		return match.Request{}, false
	}
	return req, true
}

func (s *server) writeList(w http.ResponseWriter, opps []opportunity.Opportunity) {
	if opps == nil {
		opps = []opportunity.Opportunity{}
	}
	s.writeJSON(w, http.StatusOK, listResponse{Success: true, Data: opps, Count: len(opps), Timestamp: s.now()})
}

func (s *server) writeError(w http.ResponseWriter, code int, msg string, details any) {
	s.writeJSON(w, code, errorResponse{Error: msg, Details: details, Timestamp: s.now()})
}

func (s *server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		s.log.Warn("writing response failed", zap.Error(err))
	}
}
