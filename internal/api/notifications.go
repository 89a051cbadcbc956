package api

import "net/http"

// handleListNotifications returns the notification feed, newest first.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.repo.ListNotifications(r.Context())
	if err != nil {
		s.writeDatabaseError(w, r, "list notifications", err)
		return
	}
	s.respond(w, r, "list notifications", notifications)
}
