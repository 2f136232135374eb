package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementActuatorCommand = "actuator_command"
	measurementSensorValue     = "sensor_value"
)

// WriteActuatorCommand records one dispatched actuator command.
//
// A nil or disconnected client drops the point, so callers can hold a
// *Client that was never connected when InfluxDB is disabled.
//
// Parameters:
//   - module: Behavioural module that issued the command
//   - nodeID: Target Z-Wave node
//   - command: "on" or "off"
//   - ok: Whether the device acknowledged the command
func (c *Client) WriteActuatorCommand(module string, nodeID int, command string, ok bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(actuatorCommandPoint(module, nodeID, command, ok, time.Now()))
}

// WriteSensorValue records a value reported by a node.
//
// Numbers are stored as floats and booleans as 1 or 0 so every series of
// the measurement shares one field type. Other values are dropped and
// false is returned.
func (c *Client) WriteSensorValue(nodeID int, property string, value any) bool {
	point, ok := sensorValuePoint(nodeID, property, value, time.Now())
	if !ok {
		return false
	}
	if !c.IsConnected() {
		return false
	}
	c.writeAPI.WritePoint(point)
	return true
}

func actuatorCommandPoint(module string, nodeID int, command string, ok bool, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementActuatorCommand,
		map[string]string{
			"module":  module,
			"node_id": strconv.Itoa(nodeID),
			"command": command,
		},
		map[string]any{
			"ok": ok,
		},
		ts,
	)
}

func sensorValuePoint(nodeID int, property string, value any, ts time.Time) (*write.Point, bool) {
	var v float64
	switch x := value.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case bool:
		if x {
			v = 1
		}
	default:
		return nil, false
	}

	return write.NewPoint(
		measurementSensorValue,
		map[string]string{
			"node_id":  strconv.Itoa(nodeID),
			"property": property,
		},
		map[string]any{
			"value": v,
		},
		ts,
	), true
}
