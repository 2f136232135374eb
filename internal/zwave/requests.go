package zwave

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

// BeginInclusion starts the controller's inclusion (pairing) process.
func (g *Gateway) BeginInclusion(ctx context.Context) error {
	_, err := g.request(ctx, ActionBeginInclusion, 0, map[string]any{"strategy": "default"})
	return err
}

// StopInclusion stops a running inclusion.
func (g *Gateway) StopInclusion(ctx context.Context) error {
	_, err := g.request(ctx, ActionStopInclusion, 0, nil)
	return err
}

// BeginExclusion starts the controller's exclusion process.
func (g *Gateway) BeginExclusion(ctx context.Context) error {
	_, err := g.request(ctx, ActionBeginExclusion, 0, nil)
	return err
}

// StopExclusion stops a running exclusion.
func (g *Gateway) StopExclusion(ctx context.Context) error {
	_, err := g.request(ctx, ActionStopExclusion, 0, nil)
	return err
}

// CheckFailedNode asks the controller whether a node is marked failed.
func (g *Gateway) CheckFailedNode(ctx context.Context, id device.NodeID) (bool, error) {
	resp, err := g.request(ctx, ActionCheckFailedNode, int(id), nil)
	if err != nil {
		return false, err
	}
	failed, _ := resp.Data["failed"].(bool)
	return failed, nil
}

// request publishes a controller request and waits for its response.
func (g *Gateway) request(ctx context.Context, action string, nodeID int, options map[string]any) (ResponseMessage, error) {
	if g.ctx.Err() != nil {
		return ResponseMessage{}, ErrStopped
	}

	req := RequestMessage{
		RequestID: uuid.NewString(),
		Timestamp: g.now(),
		Action:    action,
		NodeID:    nodeID,
		Options:   options,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return ResponseMessage{}, fmt.Errorf("marshalling request: %w", err)
	}

	ch := make(chan ResponseMessage, 1)
	g.pendingMu.Lock()
	g.responses[req.RequestID] = ch
	g.pendingMu.Unlock()
	defer func() {
		g.pendingMu.Lock()
		delete(g.responses, req.RequestID)
		g.pendingMu.Unlock()
	}()

	if err := g.bus.Publish(g.topics.ZWaveRequest(req.RequestID), payload, g.opts.QoS, false); err != nil {
		return ResponseMessage{}, fmt.Errorf("publishing %s request: %w", action, err)
	}
	g.logger.Info("controller request sent", "action", action, "request_id", req.RequestID)

	timer := time.NewTimer(g.opts.CommandTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if !resp.Success {
			g.logger.Error("controller request failed", "action", action, "error", resp.Error)
			return resp, fmt.Errorf("%w: %s: %s", ErrRequestFailed, action, resp.Error)
		}
		return resp, nil
	case <-timer.C:
		g.logger.Error("controller request timed out", "action", action, "request_id", req.RequestID)
		return ResponseMessage{}, fmt.Errorf("%w: %s", ErrCommandTimeout, action)
	case <-ctx.Done():
		return ResponseMessage{}, ctx.Err()
	case <-g.ctx.Done():
		return ResponseMessage{}, ErrStopped
	}
}

// handleResponse routes a request response to its waiter.
func (g *Gateway) handleResponse(_ string, payload []byte) error {
	var resp ResponseMessage
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	g.pendingMu.Lock()
	ch, ok := g.responses[resp.RequestID]
	g.pendingMu.Unlock()
	if !ok {
		g.logger.Debug("response for unknown request", "request_id", resp.RequestID)
		return nil
	}

	select {
	case ch <- resp:
	default:
	}
	return nil
}
