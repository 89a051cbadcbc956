package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Response messages shared by the handlers. The dashboard matches on these
// strings, so they must not change.
const (
	msgDatabaseError      = "Database error"
	msgInvalidCredentials = "Incorrect username or password"
	msgMissingParameters  = "Missing required parameters"
	msgInvalidBody        = "Invalid request body"
	msgInternalError      = "Internal server error"
	msgNotFound           = "Not found"
	msgMethodNotAllowed   = "Method not allowed"
	msgSettingsUpdated    = "Settings updated successfully"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// messageResponse is the body of a successful write.
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code and payload.
// A nil payload sends the headers with an empty body.
//
// The payload is encoded before any header is written. If encoding fails
// (NaN or Inf floats, for instance) the client gets a 500 instead of a
// truncated success, and the error is returned for logging.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		w.WriteHeader(status)
		return nil
	}

	body, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		//nolint:errcheck // Best-effort write to response; connection may be closed
		w.Write([]byte(`{"error":"` + msgInternalError + `"}` + "\n"))
		return fmt.Errorf("encoding response: %w", err)
	}

	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(append(body, '\n'))
	return nil
}

// respond writes v as a 200 and logs payloads that cannot be encoded.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, operation string, v any) {
	if err := writeJSON(w, http.StatusOK, v); err != nil {
		s.logger.Error("response encoding failed",
			"operation", operation,
			"error", err,
			"request_id", requestID(r.Context()),
		)
	}
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message}) //nolint:errcheck // fixed string payload always encodes
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message)
}

// writeDatabaseError logs the underlying failure and answers with the
// generic 500 body. Callers never expose err to the client.
func (s *Server) writeDatabaseError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error("database query failed",
		"operation", op,
		"path", r.URL.Path,
		"request_id", requestID(r.Context()),
		"error", err,
	)
	writeInternalError(w, msgDatabaseError)
}

// decodeJSONBody decodes the request body into dst. An empty body leaves dst
// untouched and is not an error, so absent fields are reported by the
// handler's own checks.
func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
