package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

// handleListDevices returns the status snapshot: every node the driver
// reports merged with the registry's actuator entries.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.Snapshot(s.nodes())
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// nodes returns the driver's node table, or nil without a network controller.
func (s *Server) nodes() []device.NodeInfo {
	if s.network == nil {
		return nil
	}
	return s.network.Nodes()
}
