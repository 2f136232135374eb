package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

// setStateRequest is the body of PUT /modules/{name}/actuators/state.
type setStateRequest struct {
	State string `json:"state"`
}

// handleListModules returns every loaded module with its configuration
// and current state.
func (s *Server) handleListModules(w http.ResponseWriter, _ *http.Request) {
	modules := s.modules.Modules()
	writeJSON(w, http.StatusOK, map[string]any{"modules": modules, "count": len(modules)})
}

// handleGetModule returns one module.
func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	status, err := s.modules.Module(chi.URLParam(r, "name"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleApplyConfig reloads a module's configuration from its source.
// An invalid configuration answers 422 and the previous one stays active.
func (s *Server) handleApplyConfig(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	cfg, err := s.modules.ApplyConfigChanges(r.Context(), name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("module configuration applied", "module", name, "subject", subjectFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"module": name, "config": cfg})
}

// handleSetActuators commands every actuator of a module on or off now.
//
// Commands complete asynchronously, so the response is 202 with the
// report of what was issued and what was skipped.
func (s *Server) handleSetActuators(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	state, err := device.ParseCommandState(req.State)
	if err != nil || state == device.StateUnknown {
		writeBadRequest(w, `state must be "on" or "off"`)
		return
	}

	report, err := s.modules.SetActuatorsNow(r.Context(), name, state)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("manual actuator override",
		"module", name,
		"state", state,
		"issued", len(report.Issued),
		"skipped", len(report.Skipped),
		"subject", subjectFrom(r.Context()),
	)
	writeJSON(w, http.StatusAccepted, report)
}

// handleListDispatches returns the most recent dispatch records for a
// module, newest first.
//
// Query parameters:
//   - limit: maximum number of records (default 10, capped at 100)
func (s *Server) handleListDispatches(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if s.dispatches == nil {
		writeUnavailable(w, "dispatch log not configured")
		return
	}
	if _, err := s.modules.Module(name); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.dispatches.List(r.Context(), name, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dispatches": records, "count": len(records)})
}
