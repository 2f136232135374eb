package zwave

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

// commandSource identifies this controller in command messages.
const commandSource = "scheduler"

// ackBuffer holds acks that arrive before the waiter reads them
// (queued followed by accepted).
const ackBuffer = 4

// BinarySwitch returns the on/off handle for a node in the table.
//
// Returns:
//   - device.BinarySwitch: Handle; IsSupported is false when the node
//     advertises command classes but not Binary Switch
//   - error: ErrUnknownNode if the gateway has not reported the node
func (g *Gateway) BinarySwitch(id device.NodeID) (device.BinarySwitch, error) {
	info, ok := g.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	supported := len(info.Capabilities) == 0 || slices.Contains(info.Capabilities, device.TagBinarySwitch)
	return &binarySwitch{gw: g, id: id, supported: supported}, nil
}

type binarySwitch struct {
	gw        *Gateway
	id        device.NodeID
	supported bool
}

func (s *binarySwitch) IsSupported() bool { return s.supported }

// Set hands a Binary Switch set command to a background goroutine and
// returns immediately. The channel receives nil when the gateway accepts
// the command, or the publish, rejection or timeout error otherwise.
func (s *binarySwitch) Set(ctx context.Context, on bool) <-chan error {
	return s.gw.sendCommand(ctx, CommandMessage{
		ID:           uuid.NewString(),
		Timestamp:    s.gw.now(),
		NodeID:       int(s.id),
		CommandClass: ccBinarySwitch,
		Command:      CommandSet,
		Parameters:   map[string]any{"value": on},
		Source:       commandSource,
	})
}

// sendCommand never blocks on the broker: publishing and waiting for the
// ack both happen on the command's own goroutine.
func (g *Gateway) sendCommand(ctx context.Context, cmd CommandMessage) <-chan error {
	result := make(chan error, 1)

	payload, err := json.Marshal(cmd)
	if err != nil {
		result <- fmt.Errorf("marshalling command: %w", err)
		return result
	}

	acks := make(chan AckMessage, ackBuffer)
	g.pendingMu.Lock()
	if g.stopped {
		g.pendingMu.Unlock()
		result <- ErrStopped
		return result
	}
	g.acks[cmd.ID] = acks
	g.wg.Add(1)
	g.pendingMu.Unlock()

	go func() {
		defer g.wg.Done()
		err := g.publishAndAwait(ctx, cmd, payload, acks)
		g.dropAck(cmd.ID)
		result <- err
	}()
	return result
}

func (g *Gateway) publishAndAwait(ctx context.Context, cmd CommandMessage, payload []byte, acks <-chan AckMessage) error {
	if err := g.bus.Publish(g.topics.ZWaveCommand(cmd.NodeID), payload, g.opts.QoS, false); err != nil {
		return fmt.Errorf("publishing command to node %d: %w", cmd.NodeID, err)
	}
	return g.awaitAck(ctx, cmd, acks)
}

func (g *Gateway) awaitAck(ctx context.Context, cmd CommandMessage, acks <-chan AckMessage) error {
	timer := time.NewTimer(g.opts.CommandTimeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-acks:
			switch ack.Status {
			case AckAccepted:
				return nil
			case AckQueued:
				g.logger.Debug("command queued by gateway", "command_id", cmd.ID, "node_id", cmd.NodeID)
			case AckTimeout:
				return fmt.Errorf("%w: node %d: %s", ErrCommandTimeout, cmd.NodeID, ackDetail(ack))
			default:
				return fmt.Errorf("%w: node %d: %s", ErrCommandRejected, cmd.NodeID, ackDetail(ack))
			}
		case <-timer.C:
			return fmt.Errorf("%w: node %d: no ack after %s", ErrCommandTimeout, cmd.NodeID, g.opts.CommandTimeout)
		case <-ctx.Done():
			return ctx.Err()
		case <-g.ctx.Done():
			return ErrStopped
		}
	}
}

func ackDetail(ack AckMessage) string {
	if ack.Error == nil {
		return string(ack.Status)
	}
	return fmt.Sprintf("%s: %s", ack.Error.Code, ack.Error.Message)
}

func (g *Gateway) dropAck(id string) {
	g.pendingMu.Lock()
	delete(g.acks, id)
	g.pendingMu.Unlock()
}

// handleAck routes a command ack to its waiter. Acks for unknown or
// completed commands are ignored.
func (g *Gateway) handleAck(_ string, payload []byte) error {
	var ack AckMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("parsing ack: %w", err)
	}

	g.pendingMu.Lock()
	ch, ok := g.acks[ack.CommandID]
	g.pendingMu.Unlock()
	if !ok {
		g.logger.Debug("ack for unknown command", "command_id", ack.CommandID, "status", ack.Status)
		return nil
	}

	select {
	case ch <- ack:
	default:
		g.logger.Warn("ack buffer full, dropping ack", "command_id", ack.CommandID)
	}
	return nil
}
