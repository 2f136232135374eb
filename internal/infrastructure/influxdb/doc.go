// Package influxdb records actuator and sensor history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements
// are written:
//
//   - actuator_command: one point per dispatched command, tagged with
//     module, node_id and command, with a boolean "ok" field
//   - sensor_value: one point per reported node value, tagged with
//     node_id and property
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteActuatorCommand("outdoor-light-switch", 3, "on", true)
//
// Writes are non-blocking and batched per batch_size and flush_interval.
// Batch failures are reported through SetOnError.
package influxdb
