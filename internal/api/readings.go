package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/hydrogate/internal/hydro"
)

// handleLatestReading returns the most recent sensor snapshot.
// An empty table answers 200 with no body, which the dashboard treats as
// "no data yet".
func (s *Server) handleLatestReading(w http.ResponseWriter, r *http.Request) {
	reading, err := s.repo.LatestReading(r.Context())
	if errors.Is(err, hydro.ErrNoReadings) {
		writeJSON(w, http.StatusOK, nil) //nolint:errcheck // empty body
		return
	}
	if err != nil {
		s.writeDatabaseError(w, r, "latest reading", err)
		return
	}
	s.respond(w, r, "latest reading", reading)
}

// handleListReadings returns the full reading history, newest first.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := s.repo.ListReadings(r.Context())
	if err != nil {
		s.writeDatabaseError(w, r, "list readings", err)
		return
	}
	s.respond(w, r, "list readings", readings)
}
