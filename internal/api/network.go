package api

import (
	"context"
	"net/http"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

// auditEntry is one node in the network audit: the status snapshot plus
// the controller's own failed-node verdict.
type auditEntry struct {
	device.StatusSnapshot
	CheckError string `json:"check_error,omitempty"`
}

// handleNetworkAudit asks the controller about every known node and
// reports which are marked failed. Nodes are checked one at a time since
// the controller serialises these requests anyway.
func (s *Server) handleNetworkAudit(w http.ResponseWriter, r *http.Request) {
	if s.network == nil {
		writeUnavailable(w, "network controller not configured")
		return
	}

	snapshot := s.registry.Snapshot(s.network.Nodes())
	entries := make([]auditEntry, 0, len(snapshot))
	failed := 0
	for _, snap := range snapshot {
		entry := auditEntry{StatusSnapshot: snap}
		ok, err := s.network.CheckFailedNode(r.Context(), snap.ID)
		switch {
		case err != nil:
			entry.CheckError = err.Error()
		case ok:
			entry.Failed = true
		}
		if entry.Failed {
			failed++
		}
		entries = append(entries, entry)
		if r.Context().Err() != nil {
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"nodes": entries, "count": len(entries), "failed": failed})
}

func (s *Server) handleBeginInclusion(w http.ResponseWriter, r *http.Request) {
	s.networkRequest(w, r, "inclusion started", func(ctx context.Context, c NetworkController) error {
		return c.BeginInclusion(ctx)
	})
}

func (s *Server) handleStopInclusion(w http.ResponseWriter, r *http.Request) {
	s.networkRequest(w, r, "inclusion stopped", func(ctx context.Context, c NetworkController) error {
		return c.StopInclusion(ctx)
	})
}

func (s *Server) handleBeginExclusion(w http.ResponseWriter, r *http.Request) {
	s.networkRequest(w, r, "exclusion started", func(ctx context.Context, c NetworkController) error {
		return c.BeginExclusion(ctx)
	})
}

func (s *Server) handleStopExclusion(w http.ResponseWriter, r *http.Request) {
	s.networkRequest(w, r, "exclusion stopped", func(ctx context.Context, c NetworkController) error {
		return c.StopExclusion(ctx)
	})
}

// networkRequest runs one controller request and writes the outcome.
func (s *Server) networkRequest(w http.ResponseWriter, r *http.Request, outcome string, call func(context.Context, NetworkController) error) {
	if s.network == nil {
		writeUnavailable(w, "network controller not configured")
		return
	}
	if err := call(r.Context(), s.network); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.logger.Info(outcome, "subject", subjectFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"status": outcome})
}
