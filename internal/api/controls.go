package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// updateControlsRequest is the body of POST /api/update_controls.
// DispenseAmount stays raw so an absent field can be told apart from null.
type updateControlsRequest struct {
	ComponentName  string          `json:"componentName"`
	DispenseAmount json.RawMessage `json:"dispenseAmount"`
}

// handleListControls returns the active components and their dispense amounts.
func (s *Server) handleListControls(w http.ResponseWriter, r *http.Request) {
	controls, err := s.repo.ListActiveControls(r.Context())
	if err != nil {
		s.writeDatabaseError(w, r, "list controls", err)
		return
	}
	s.respond(w, r, "list controls", controls)
}

// handleUpdateControls sets the dispense amount of one active component.
//
// A request naming an unknown or inactive component still succeeds; nothing
// is written. Successful changes are announced to WebSocket clients, the
// MQTT broker and InfluxDB after the response is decided.
func (s *Server) handleUpdateControls(w http.ResponseWriter, r *http.Request) {
	var req updateControlsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(w, msgInvalidBody)
		return
	}

	if req.ComponentName == "" || len(req.DispenseAmount) == 0 {
		writeBadRequest(w, msgMissingParameters)
		return
	}

	amount, err := parseDispenseAmount(req.DispenseAmount)
	if err != nil {
		writeBadRequest(w, msgInvalidBody)
		return
	}

	affected, err := s.repo.UpdateDispenseAmount(r.Context(), req.ComponentName, amount)
	if err != nil {
		s.metrics.controlUpdates.WithLabelValues(updateResultFailed).Inc()
		s.writeDatabaseError(w, r, "update controls", err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: msgSettingsUpdated}) //nolint:errcheck // fixed string payload always encodes

	if affected == 0 {
		s.metrics.controlUpdates.WithLabelValues(updateResultNoop).Inc()
		s.logger.Debug("control update matched no active component",
			"component_name", req.ComponentName,
			"request_id", requestID(r.Context()),
		)
		return
	}

	s.metrics.controlUpdates.WithLabelValues(updateResultApplied).Inc()
	s.announceControlChange(req.ComponentName, amount, affected)
}

// announceControlChange fans a committed change out to the optional sinks.
// Failures are logged and never reach the HTTP client.
func (s *Server) announceControlChange(componentName string, amount *float64, affected int64) {
	s.hub.Broadcast(EventControlsUpdated, ControlsUpdatedPayload{
		ComponentName:  componentName,
		DispenseAmount: amount,
		RowsAffected:   affected,
	})

	if s.recorder != nil {
		s.recorder.WriteControlChange(componentName, amount)
	}

	if s.publisher != nil {
		// Publishing waits for the broker ack; keep it off the request path.
		go func() {
			if err := s.publisher.PublishControlSetting(componentName, amount); err != nil {
				s.logger.Warn("failed to publish control setting",
					"component_name", componentName,
					"error", err,
				)
			}
		}()
	}
}

// parseDispenseAmount converts the raw dispenseAmount value. JSON null maps
// to nil (stored as SQL NULL); numbers and numeric strings map to a value.
func parseDispenseAmount(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if string(raw) == "null" {
		return nil, nil
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return &v, nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil, fmt.Errorf("dispenseAmount must be a number or null")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return nil, fmt.Errorf("dispenseAmount %q is not numeric: %w", str, err)
	}
	return &v, nil
}
