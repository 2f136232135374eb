package influxdb

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/config"
)

var fixedTime = time.Date(2026, 10, 16, 7, 0, 0, 0, time.UTC)

func TestActuatorCommandPoint(t *testing.T) {
	line := write.PointToLineProtocol(actuatorCommandPoint("outdoor", 3, "on", true, fixedTime), time.Second)

	if !strings.HasPrefix(line, "actuator_command,") {
		t.Errorf("line = %q, want actuator_command measurement", line)
	}
	for _, want := range []string{"command=on", "module=outdoor", "node_id=3", "ok=true"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestSensorValuePoint(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
		ok    bool
	}{
		{"float", 21.5, "value=21.5", true},
		{"int", 40, "value=40", true},
		{"bool true", true, "value=1", true},
		{"bool false", false, "value=0", true},
		{"string", "on", "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point, ok := sensorValuePoint(7, "currentValue", tt.value, fixedTime)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			line := write.PointToLineProtocol(point, time.Second)
			if !strings.Contains(line, "node_id=7") || !strings.Contains(line, "property=currentValue") {
				t.Errorf("line %q missing tags", line)
			}
			if !strings.Contains(line, tt.want) {
				t.Errorf("line %q missing %q", line, tt.want)
			}
		})
	}
}

func TestNilClientWritesAreDropped(t *testing.T) {
	var c *Client
	c.WriteActuatorCommand("outdoor", 3, "off", false)
	if c.WriteSensorValue(3, "currentValue", 1.0) {
		t.Error("WriteSensorValue() on nil client = true, want false")
	}
}

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestClientOptionsDefaults(t *testing.T) {
	opts := clientOptions(config.InfluxDBConfig{})
	if opts.BatchSize() != 100 {
		t.Errorf("BatchSize() = %d, want 100", opts.BatchSize())
	}
	if opts.FlushInterval() != 10000 {
		t.Errorf("FlushInterval() = %d, want 10000", opts.FlushInterval())
	}

	opts = clientOptions(config.InfluxDBConfig{BatchSize: 5, FlushInterval: 2})
	if opts.BatchSize() != 5 || opts.FlushInterval() != 2000 {
		t.Errorf("options = (%d, %d), want (5, 2000)", opts.BatchSize(), opts.FlushInterval())
	}
}
